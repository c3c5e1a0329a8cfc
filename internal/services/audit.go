package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/rs/zerolog/log"
)

// ClientInfo identifies where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuditLog records authentication events. Recording is best-effort and never
// fails the request that triggered it.
type AuditLog interface {
	Record(ctx context.Context, userID string, kind models.AuthEventKind, client ClientInfo)
	Recent(ctx context.Context, userID string, limit int) ([]models.AuthEvent, error)
}

type AuditRecorder struct {
	repo    repository.AuditRepository
	timeout time.Duration
}

func NewAuditRecorder(repo repository.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo, timeout: 2 * time.Second}
}

func (a *AuditRecorder) Record(ctx context.Context, userID string, kind models.AuthEventKind, client ClientInfo) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	e := &models.AuthEvent{UserID: userID, Kind: kind, IPAddress: client.IP, UserAgent: client.UserAgent}
	if err := a.repo.Insert(ctx, e); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("failed to record auth event")
	}
}

func (a *AuditRecorder) Recent(ctx context.Context, userID string, limit int) ([]models.AuthEvent, error) {
	return a.repo.ListByUser(ctx, userID, limit)
}

// NopAudit is used when no audit database is configured.
type NopAudit struct{}

func (NopAudit) Record(context.Context, string, models.AuthEventKind, ClientInfo) {}

func (NopAudit) Recent(context.Context, string, int) ([]models.AuthEvent, error) {
	return []models.AuthEvent{}, nil
}
