package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/AnshRaj112/buildlog-backend/pkg/utils"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const msgCredentialsTaken = "Email or username already in use"

type SignupInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// AuthResult is returned by the flows that end in a session.
type AuthResult struct {
	User  *models.User
	Token string
}

// AuthService runs the OTP-gated signup, verification and login flows.
type AuthService struct {
	users    repository.UserRepository
	sessions *SessionIssuer
	mailer   Mailer
	audit    AuditLog
	policy   OTPPolicy
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, sessions *SessionIssuer, mailer Mailer, audit AuditLog, policy OTPPolicy) *AuthService {
	if audit == nil {
		audit = NopAudit{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		audit:    audit,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) newChallenge(now time.Time) (*models.OTPChallenge, error) {
	code, err := GenerateOTP()
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return &models.OTPChallenge{Code: code, ExpiresAt: OTPExpiryAt(now, s.policy.TTL)}, nil
}

// Signup registers an unverified user, or takes over the pending registration
// holding the same email or username, and mails a verification code. If the mail cannot be
// sent the store is put back the way it was.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, client ClientInfo) (primitive.ObjectID, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = utils.NormalizeUsername(in.Username)
	in.Email = utils.NormalizeEmail(in.Email)
	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return primitive.NilObjectID, apperr.Validation("All fields are required")
	}
	if err := utils.ValidateUsername(in.Username); err != nil {
		return primitive.NilObjectID, apperr.Validation(err.Error())
	}
	if err := utils.ValidateEmail(in.Email); err != nil {
		return primitive.NilObjectID, apperr.Validation(err.Error())
	}

	byEmail, err := s.lookup(ctx, s.users.FindByEmail, in.Email)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if byEmail != nil && byEmail.IsEmailVerified {
		return primitive.NilObjectID, apperr.Validation(msgCredentialsTaken)
	}
	byName, err := s.lookup(ctx, s.users.FindByUsername, in.Username)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if byName != nil && byName.IsEmailVerified {
		return primitive.NilObjectID, apperr.Validation(msgCredentialsTaken)
	}
	// A pending registration is taken over whether it matched on email or on
	// username. Two different pending records cannot both be claimed.
	pending := byEmail
	if pending == nil {
		pending = byName
	} else if byName != nil && byName.ID != byEmail.ID {
		return primitive.NilObjectID, apperr.Validation(msgCredentialsTaken)
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		return primitive.NilObjectID, apperr.Internal("Server error", err)
	}
	now := s.now()
	otp, err := s.newChallenge(now)
	if err != nil {
		return primitive.NilObjectID, err
	}

	user := &models.User{
		Name:      in.Name,
		Username:  in.Username,
		Email:     in.Email,
		Password:  hashed,
		OTP:       otp,
		OTPSentAt: &now,
	}
	var rollback func(context.Context) error
	if pending == nil {
		err = s.users.Create(ctx, user)
		rollback = func(ctx context.Context) error { return s.users.Delete(ctx, user.ID) }
	} else {
		user.ID = pending.ID
		prior := pending
		err = s.users.ReplaceRegistration(ctx, user)
		rollback = func(ctx context.Context) error { return s.users.ReplaceRegistration(ctx, prior) }
	}
	// ErrNotFound here means the pending record was verified after the lookup.
	if errors.Is(err, repository.ErrDuplicate) || errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, apperr.Validation(msgCredentialsTaken)
	}
	if err != nil {
		return primitive.NilObjectID, apperr.Internal("Server error", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Name, otp.Code); err != nil {
		if rbErr := rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error().Err(rbErr).Str("user_id", user.ID.Hex()).Msg("failed to roll back signup")
		}
		return primitive.NilObjectID, apperr.Internal("Failed to send verification email. Please try again.", err)
	}

	s.audit.Record(ctx, user.ID.Hex(), models.AuthEventSignup, client)
	return user.ID, nil
}

// VerifyOTP consumes a valid code, marks the email verified and opens a session.
// A wrong or expired code leaves the user untouched.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string, client ClientInfo) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperr.Validation("Email and OTP are required")
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsEmailVerified {
		return nil, apperr.Validation("Email already verified")
	}
	if user.OTP == nil || !IsOTPValid(user.OTP.Code, code, user.OTP.ExpiresAt, s.now()) {
		return nil, apperr.Validation("Invalid or expired OTP")
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	user.IsEmailVerified = true
	user.OTP, user.OTPSentAt = nil, nil

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	s.audit.Record(ctx, user.ID.Hex(), models.AuthEventOTPVerified, client)
	return &AuthResult{User: user, Token: token}, nil
}

// ResendOTP issues a fresh code once the cooldown since the previous one has passed.
func (s *AuthService) ResendOTP(ctx context.Context, email string, client ClientInfo) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("Email is required")
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return apperr.Validation("Email already verified")
	}
	now := s.now()
	if !s.policy.CanResend(user.OTPSentAt, now) {
		return apperr.RateLimited("Please wait before requesting a new OTP")
	}

	otp, err := s.newChallenge(now)
	if err != nil {
		return err
	}
	if err := s.users.SetOTP(ctx, user.ID, otp, &now); err != nil {
		return apperr.Internal("Server error", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Name, otp.Code); err != nil {
		if rbErr := s.users.SetOTP(context.WithoutCancel(ctx), user.ID, user.OTP, user.OTPSentAt); rbErr != nil {
			log.Error().Err(rbErr).Str("user_id", user.ID.Hex()).Msg("failed to restore previous otp")
		}
		return apperr.Internal("Failed to send OTP. Please try again.", err)
	}

	s.audit.Record(ctx, user.ID.Hex(), models.AuthEventOTPResent, client)
	return nil
}

// Login authenticates by email or username. Unverified accounts get a
// forbidden error that carries their id so the client can resume verification.
func (s *AuthService) Login(ctx context.Context, identifier, password string, client ClientInfo) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperr.Validation("Email/Username and password are required")
	}

	user, err := s.users.FindByEmailOrUsername(ctx, utils.NormalizeEmail(identifier), utils.NormalizeUsername(identifier))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Validation("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.Hex()).Msg("stored password hash unreadable")
	}
	if !ok {
		s.audit.Record(ctx, user.ID.Hex(), models.AuthEventLoginFailed, client)
		return nil, apperr.Validation("Invalid credentials")
	}

	if !user.IsEmailVerified {
		s.audit.Record(ctx, user.ID.Hex(), models.AuthEventLoginUnverified, client)
		return nil, apperr.Forbidden("Please verify your email first").With("userId", user.ID.Hex())
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	s.audit.Record(ctx, user.ID.Hex(), models.AuthEventLoginSucceeded, client)
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return user, nil
}

// Activity returns the caller's recent authentication events, newest first.
func (s *AuthService) Activity(ctx context.Context, id primitive.ObjectID, limit int) ([]models.AuthEvent, error) {
	events, err := s.audit.Recent(ctx, id.Hex(), limit)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return events, nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return user, nil
}

// lookup returns nil, nil when find reports not found.
func (s *AuthService) lookup(ctx context.Context, find func(context.Context, string) (*models.User, error), key string) (*models.User, error) {
	u, err := find(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return u, nil
}
