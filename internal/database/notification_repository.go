package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uptwn/booking-backend/internal/models"
)

// NotificationRepository writes notification rows for the delivery system
type NotificationRepository struct {
	db sqlx.ExtContext
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *NotificationRepository) WithTx(tx *sqlx.Tx) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.ReferenceID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
