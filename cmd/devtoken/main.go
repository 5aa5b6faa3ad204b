// Command devtoken signs an access token for local testing against a
// backend that shares JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptwn/booking-backend/pkg/jwt"
)

func main() {
	userFlag := flag.String("user", "", "user id (random when empty)")
	email := flag.String("email", "dev@example.com", "email claim")
	roles := flag.String("roles", "user", "comma separated roles")
	inactive := flag.Bool("inactive", false, "issue the token for an inactive account")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "uptwn-auth"
	}

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("Invalid user id: %v", err)
		}
		userID = parsed
	}

	service := jwt.NewService(secret, issuer, *ttl)
	token, err := service.GenerateAccessToken(userID, *email, strings.Split(*roles, ","), !*inactive)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s\n", userID)
	fmt.Println(token)
}
