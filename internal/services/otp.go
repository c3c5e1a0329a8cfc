package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

// GenerateOTP returns a uniformly random six-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// OTPExpiryAt returns the expiry of a code issued at now.
func OTPExpiryAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// IsOTPValid reports whether supplied matches stored and now is before expiry.
// A missing stored code or expiry is never valid.
func IsOTPValid(stored, supplied string, expiry, now time.Time) bool {
	if stored == "" || supplied == "" || expiry.IsZero() {
		return false
	}
	if !now.Before(expiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// OTPPolicy holds the challenge lifetime and the resend cooldown.
type OTPPolicy struct {
	TTL            time.Duration
	ResendCooldown time.Duration
}

// CanResend reports whether a new code may be issued. The cooldown runs from
// the moment the previous code was sent; no previous send always allows it.
func (p OTPPolicy) CanResend(sentAt *time.Time, now time.Time) bool {
	if sentAt == nil || sentAt.IsZero() {
		return true
	}
	return now.Sub(*sentAt) >= p.ResendCooldown
}
