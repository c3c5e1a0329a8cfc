package services

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	six := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 500; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, six, code)
	}
}

func TestIsOTPValid(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name     string
		stored   string
		supplied string
		expiry   time.Time
		want     bool
	}{
		{"match before expiry", "123456", "123456", future, true},
		{"match after expiry", "123456", "123456", past, false},
		{"expiry equals now", "123456", "123456", now, false},
		{"mismatch", "123456", "wrong", future, false},
		{"no stored code", "", "123456", future, false},
		{"no supplied code", "123456", "", future, false},
		{"no expiry", "123456", "123456", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOTPValid(tt.stored, tt.supplied, tt.expiry, now))
		})
	}
}

func TestOTPPolicy_CanResend(t *testing.T) {
	p := OTPPolicy{TTL: 10 * time.Minute, ResendCooldown: 50 * time.Minute}
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, p.CanResend(nil, now))

	sent := now.Add(-49 * time.Minute)
	assert.False(t, p.CanResend(&sent, now))

	sent = now.Add(-50 * time.Minute)
	assert.True(t, p.CanResend(&sent, now))

	assert.Equal(t, now.Add(10*time.Minute), OTPExpiryAt(now, p.TTL))
}
