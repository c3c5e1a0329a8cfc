package models

import (
	"time"

	"github.com/google/uuid"
)

type AuthEventKind string

const (
	AuthEventSignup          AuthEventKind = "signup"
	AuthEventOTPVerified     AuthEventKind = "otp_verified"
	AuthEventOTPResent       AuthEventKind = "otp_resent"
	AuthEventLoginSucceeded  AuthEventKind = "login_succeeded"
	AuthEventLoginFailed     AuthEventKind = "login_failed"
	AuthEventLoginUnverified AuthEventKind = "login_unverified"
)

// AuthEvent is one row of the authentication audit trail kept in PostgreSQL.
type AuthEvent struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"userId"`
	Kind      AuthEventKind `db:"kind" json:"kind"`
	IPAddress string        `db:"ip_address" json:"ipAddress"`
	UserAgent string        `db:"user_agent" json:"userAgent"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}
