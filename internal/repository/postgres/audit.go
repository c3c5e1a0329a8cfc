// Package postgres keeps the authentication audit trail in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, e *models.AuthEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_events (id, user_id, kind, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Kind, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuthEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	events := []models.AuthEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, user_id, kind, ip_address, user_agent, created_at
		FROM auth_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}
