// Package service provides the focal authentication and neighborhood business
// logic of the development backend, delegating persistence to repositories.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/metrics"
	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/atinyakov/ResQWave/internal/repository"
	"github.com/atinyakov/ResQWave/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Messages returned in login bodies.
const (
	InvalidCredentialsMessage = "Invalid email/phone number or password"
	LockedMessage             = "Account locked due to too many failed attempts"
	CodeSentMessage           = "Verification code sent"
	CodeResentMessage         = "Verification code resent"
	VerifiedMessage           = "Login successful"
)

// Errors returned by AuthService. The HTTP layer maps them to statuses.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrPendingNotFound = errors.New("pending login not found or expired")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrResendTooSoon   = errors.New("resend requested too soon")
	ErrTooManyCodes    = errors.New("too many invalid codes")
	ErrUserNotFound    = errors.New("user not found")
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	FindUserByIdentifier(ctx context.Context, identifier string) (*models.FocalUser, error)
	FindUserByID(ctx context.Context, id string) (*models.FocalUser, error)
	RecordFailedLogin(ctx context.Context, userID string) (int, error)
	LockUser(ctx context.Context, userID string, until time.Time) error
	ResetFailedLogins(ctx context.Context, userID string) error
	CreatePendingLogin(ctx context.Context, p models.PendingCode) error
	GetPendingLogin(ctx context.Context, tempToken string) (*models.PendingCode, error)
	ReplacePendingLogin(ctx context.Context, oldToken string, p models.PendingCode) error
	ConsumePendingLogin(ctx context.Context, tempToken string) error
	RecordFailedCode(ctx context.Context, tempToken string) (int, error)
	DeletePendingLogin(ctx context.Context, tempToken string) error
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(user models.UserProfile) (string, *token.Claims, error)
}

// CodeSender delivers one-time codes to a user.
type CodeSender interface {
	SendCode(ctx context.Context, user models.FocalUser, code string) error
}

// Recorder counts auth outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	Login(outcome string)
	Verify(outcome string)
	Resend(outcome string)
	Logout()
}

// AuthConfig holds the tunables of the login flow.
type AuthConfig struct {
	OTPTTL            time.Duration
	ResendInterval    time.Duration
	MaxFailedAttempts int
	MaxCodeAttempts   int
	LockDuration      time.Duration
}

// LoginResult is the body of a login or resend response. Invalid credentials
// and lockouts are results, not errors.
type LoginResult struct {
	Message   string `json:"message"`
	TempToken string `json:"tempToken,omitempty"`
	Locked    bool   `json:"locked,omitempty"`
	LockUntil string `json:"lockUntil,omitempty"`
}

// VerifyResult is the body of a successful verification.
type VerifyResult struct {
	Message string             `json:"message"`
	Token   string             `json:"token"`
	User    models.UserProfile `json:"user"`
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithHashCost sets the bcrypt cost used for one-time codes.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) { s.hashCost = cost }
}

// AuthService implements the two-step focal login.
type AuthService struct {
	repo     AuthRepository
	tokens   TokenIssuer
	sender   CodeSender
	rec      Recorder
	cfg      AuthConfig
	log      *zap.Logger
	now      func() time.Time
	hashCost int
}

// NewAuthService constructs an AuthService. rec may be nil.
func NewAuthService(
	repo AuthRepository,
	tokens TokenIssuer,
	sender CodeSender,
	rec Recorder,
	cfg AuthConfig,
	log *zap.Logger,
	opts ...AuthOption,
) *AuthService {
	if rec == nil {
		rec = nopRecorder{}
	}
	s := &AuthService{
		repo:     repo,
		tokens:   tokens,
		sender:   sender,
		rec:      rec,
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login checks the password of the account behind identifier and, on success,
// sends a one-time code and returns the temporary token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.repo.FindUserByIdentifier(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		s.rec.Login(metrics.OutcomeInvalid)
		return &LoginResult{Message: InvalidCredentialsMessage}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.Locked(now) {
		s.rec.Login(metrics.OutcomeLocked)
		return lockedResult(*user.LockedUntil), nil
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return s.failLogin(ctx, user, now)
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	p, code, err := s.newPending(user.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePendingLogin(ctx, p); err != nil {
		return nil, err
	}
	if err := s.sender.SendCode(ctx, *user, code); err != nil {
		return nil, fmt.Errorf("send code: %w", err)
	}

	s.rec.Login(metrics.OutcomeCodeSent)
	s.log.Info("login accepted", zap.String("user", user.ID))
	return &LoginResult{Message: CodeSentMessage, TempToken: p.TempToken}, nil
}

func (s *AuthService) failLogin(ctx context.Context, user *models.FocalUser, now time.Time) (*LoginResult, error) {
	attempts, err := s.repo.RecordFailedLogin(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxFailedAttempts > 0 && attempts >= s.cfg.MaxFailedAttempts {
		until := now.Add(s.cfg.LockDuration)
		if err := s.repo.LockUser(ctx, user.ID, until); err != nil {
			return nil, err
		}
		s.rec.Login(metrics.OutcomeLocked)
		s.log.Warn("account locked", zap.String("user", user.ID), zap.Int("attempts", attempts))
		return lockedResult(until), nil
	}
	s.rec.Login(metrics.OutcomeInvalid)
	return &LoginResult{Message: InvalidCredentialsMessage}, nil
}

// Verify exchanges a temporary token and code for a session token.
func (s *AuthService) Verify(ctx context.Context, tempToken, code string) (*VerifyResult, error) {
	if tempToken == "" || code == "" {
		return nil, ErrInvalidInput
	}

	p, err := s.livePending(ctx, tempToken)
	if err != nil {
		s.rec.Verify(metrics.OutcomeExpired)
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.CodeHash), []byte(code)) != nil {
		s.rec.Verify(metrics.OutcomeRejected)
		return nil, s.failCode(ctx, tempToken)
	}

	// Only the caller that consumes the pending login gets a session.
	if err := s.repo.ConsumePendingLogin(ctx, tempToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	user, err := s.user(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	profile := user.Profile()
	signed, _, err := s.tokens.Issue(profile)
	if err != nil {
		return nil, err
	}

	s.rec.Verify(metrics.OutcomeVerified)
	s.log.Info("session issued", zap.String("user", user.ID))
	return &VerifyResult{Message: VerifiedMessage, Token: signed, User: profile}, nil
}

// failCode counts a wrong code and discards the pending login once
// MaxCodeAttempts is reached.
func (s *AuthService) failCode(ctx context.Context, tempToken string) error {
	attempts, err := s.repo.RecordFailedCode(ctx, tempToken)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPendingNotFound
	}
	if err != nil {
		return err
	}
	if s.cfg.MaxCodeAttempts > 0 && attempts >= s.cfg.MaxCodeAttempts {
		if err := s.repo.DeletePendingLogin(ctx, tempToken); err != nil {
			return err
		}
		s.log.Warn("pending login discarded after wrong codes", zap.Int("attempts", attempts))
		return ErrTooManyCodes
	}
	return ErrInvalidCode
}

// Resend issues a new code and temporary token for a live pending login, at
// most once per ResendInterval.
func (s *AuthService) Resend(ctx context.Context, tempToken string) (*LoginResult, error) {
	if tempToken == "" {
		return nil, ErrInvalidInput
	}

	p, err := s.livePending(ctx, tempToken)
	if err != nil {
		s.rec.Resend(metrics.OutcomeExpired)
		return nil, err
	}
	now := s.now()
	if now.Sub(p.LastSentAt) < s.cfg.ResendInterval {
		s.rec.Resend(metrics.OutcomeThrottled)
		return nil, ErrResendTooSoon
	}

	user, err := s.user(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.Locked(now) {
		s.rec.Resend(metrics.OutcomeLocked)
		return lockedResult(*user.LockedUntil), nil
	}

	next, code, err := s.newPending(user.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplacePendingLogin(ctx, tempToken, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	if err := s.sender.SendCode(ctx, *user, code); err != nil {
		return nil, fmt.Errorf("send code: %w", err)
	}

	s.rec.Resend(metrics.OutcomeResent)
	return &LoginResult{Message: CodeResentMessage, TempToken: next.TempToken}, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := user.Profile()
	return &p, nil
}

// Logout revokes the session token described by claims.
func (s *AuthService) Logout(ctx context.Context, claims *token.Claims) error {
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.repo.RevokeToken(ctx, claims.ID, exp); err != nil {
		return err
	}
	s.rec.Logout()
	return nil
}

func (s *AuthService) user(ctx context.Context, id string) (*models.FocalUser, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// livePending returns the pending login for tempToken, deleting it when expired.
func (s *AuthService) livePending(ctx context.Context, tempToken string) (*models.PendingCode, error) {
	p, err := s.repo.GetPendingLogin(ctx, tempToken)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(p.ExpiresAt) {
		if err := s.repo.DeletePendingLogin(ctx, tempToken); err != nil {
			s.log.Warn("failed to delete expired pending login", zap.Error(err))
		}
		return nil, ErrPendingNotFound
	}
	return p, nil
}

func (s *AuthService) newPending(userID string, now time.Time) (models.PendingCode, string, error) {
	code, err := newCode()
	if err != nil {
		return models.PendingCode{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return models.PendingCode{}, "", fmt.Errorf("hash code: %w", err)
	}
	return models.PendingCode{
		TempToken:  uuid.NewString(),
		UserID:     userID,
		CodeHash:   string(hash),
		ExpiresAt:  now.Add(s.cfg.OTPTTL),
		LastSentAt: now,
	}, code, nil
}

// newCode returns a uniformly random 6-digit code.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func lockedResult(until time.Time) *LoginResult {
	return &LoginResult{
		Message:   LockedMessage,
		Locked:    true,
		LockUntil: until.UTC().Format(time.RFC3339),
	}
}

type nopRecorder struct{}

func (nopRecorder) Login(string)  {}
func (nopRecorder) Verify(string) {}
func (nopRecorder) Resend(string) {}
func (nopRecorder) Logout()       {}
