package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// bookingNumberAlphabet is the character set of booking number suffixes
const bookingNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// BookingNumberLength is the length of the random part of a booking number
const BookingNumberLength = 8

// GenerateSecret generates a cryptographically secure random hex secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RandomString returns n characters drawn uniformly from alphabet
func RandomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random index: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateBookingNumber returns PREFIX-XXXXXXXX with an uppercase
// alphanumeric suffix. Uniqueness is checked by the caller.
func GenerateBookingNumber(prefix string) (string, error) {
	suffix, err := RandomString(bookingNumberAlphabet, BookingNumberLength)
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}
