// Package auth implements the focal person login handshake: credentials are
// exchanged for a temporary token, and a one-time code plus that token are
// exchanged for a session token that is persisted in the credential store.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atinyakov/ResQWave/internal/client/gateway"
	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// Backend endpoints.
const (
	PathLogin  = "/focal/login"
	PathVerify = "/focal/verify"
	PathResend = "/focal/resend"
	PathMe     = "/me"
	PathLogout = "/logout"
)

// DefaultOTPTTL is the advisory lifetime of a temporary token.
const DefaultOTPTTL = 5 * time.Minute

// Requester performs backend calls. *gateway.Gateway implements it.
type Requester interface {
	Request(ctx context.Context, path string, opts gateway.RequestOptions, out any) error
}

// CredentialStore is the part of the credential store the client uses.
type CredentialStore interface {
	Get() models.Credential
	Set(token string, user models.UserProfile) error
	Clear() error
	SetOTPExpiry(t time.Time) error
	OTPExpiry() (time.Time, bool)
	ClearOTPExpiry() error
}

// Session is the outcome of a successful verification.
type Session struct {
	Token   string
	User    models.UserProfile
	Message string
}

type loginRequest struct {
	EmailOrNumber string `json:"emailOrNumber"`
	Password      string `json:"password"`
}

type verifyRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

type resendRequest struct {
	TempToken string `json:"tempToken"`
}

// pendingResponse is the body of /focal/login and /focal/resend.
type pendingResponse struct {
	Message   string `json:"message"`
	TempToken string `json:"tempToken"`
	Locked    bool   `json:"locked"`
	LockUntil string `json:"lockUntil"`
}

type verifyResponse struct {
	Message string              `json:"message"`
	Token   string              `json:"token"`
	User    *models.UserProfile `json:"user"`
}

type meResponse struct {
	User *models.UserProfile `json:"user"`
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithOTPTTL sets the advisory temporary-token lifetime.
func WithOTPTTL(ttl time.Duration) Option {
	return func(c *Client) { c.otpTTL = ttl }
}

// Client orchestrates login, verification, resend and logout over the gateway.
type Client struct {
	gw     Requester
	store  CredentialStore
	log    *zap.Logger
	now    func() time.Time
	otpTTL time.Duration
}

// New returns a Client.
func New(gw Requester, store CredentialStore, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		gw:     gw,
		store:  store,
		log:    logger.OrNop(log),
		now:    time.Now,
		otpTTL: DefaultOTPTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login submits credentials and returns the pending login carrying the
// temporary token. Malformed input fails with a validation error before any
// request is made.
func (c *Client) Login(ctx context.Context, identifier, password string) (*models.PendingLogin, error) {
	id := NormalizeIdentifier(identifier)
	if _, err := ValidateIdentifier(id); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, models.NewValidationError("Password is required")
	}

	var resp pendingResponse
	err := c.gw.Request(ctx, PathLogin, gateway.RequestOptions{
		Method: http.MethodPost,
		Body:   loginRequest{EmailOrNumber: id, Password: password},
	}, &resp)
	if err != nil {
		return nil, classifyLoginError(err)
	}

	// locked is checked before the message so a lockout is never reported as
	// a plain credential rejection.
	if resp.Locked {
		return nil, models.NewAccountLocked(lockMessage(resp))
	}
	if IsInvalidCredentials(resp.Message) {
		return nil, models.NewInvalidCredentials(http.StatusOK, resp.Message)
	}
	if resp.TempToken == "" {
		return nil, models.NewAPIError(http.StatusOK, orDefault(resp.Message, "Login failed"), nil)
	}

	p := c.pending(resp.TempToken, id)
	c.log.Info("login accepted, awaiting code", zap.String("identifier", maskIdentifier(id)))
	return p, nil
}

// Verify exchanges the temporary token and code for a session. When it returns
// without error, the credential store already holds the new session.
func (c *Client) Verify(ctx context.Context, tempToken, code string) (*Session, error) {
	if strings.TrimSpace(tempToken) == "" {
		return nil, models.NewValidationError("Login again to receive a new code")
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	var resp verifyResponse
	err := c.gw.Request(ctx, PathVerify, gateway.RequestOptions{
		Method: http.MethodPost,
		Body:   verifyRequest{TempToken: tempToken, Code: code},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, models.NewAPIError(http.StatusOK, orDefault(resp.Message, "Verification failed"), nil)
	}

	if err := c.store.Set(resp.Token, *resp.User); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := c.store.ClearOTPExpiry(); err != nil {
		c.log.Warn("failed to clear otp expiry", zap.Error(err))
	}

	c.log.Info("verification succeeded", zap.String("user", resp.User.ID), zap.String("role", string(resp.User.Role)))
	return &Session{Token: resp.Token, User: *resp.User, Message: resp.Message}, nil
}

// Resend asks for a new code for the pending login. The returned pending login
// carries the server's new temporary token, or the old one if none was sent.
func (c *Client) Resend(ctx context.Context, tempToken string) (*models.PendingLogin, error) {
	if strings.TrimSpace(tempToken) == "" {
		return nil, models.NewValidationError("Login again to receive a new code")
	}

	var resp pendingResponse
	err := c.gw.Request(ctx, PathResend, gateway.RequestOptions{
		Method: http.MethodPost,
		Body:   resendRequest{TempToken: tempToken},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Locked {
		return nil, models.NewAccountLocked(lockMessage(resp))
	}

	return c.pending(orDefault(resp.TempToken, tempToken), ""), nil
}

// Logout tells the backend the session is over and always clears local state.
// Backend failures are logged; only a failure to clear the store is returned.
func (c *Client) Logout(ctx context.Context) error {
	defer func() {
		if err := c.store.ClearOTPExpiry(); err != nil {
			c.log.Warn("failed to clear otp expiry", zap.Error(err))
		}
	}()

	if !c.store.Get().Empty() {
		if err := c.gw.Request(ctx, PathLogout, gateway.RequestOptions{Method: http.MethodPost}, nil); err != nil {
			c.log.Warn("backend logout failed", zap.Error(err))
		}
	}

	if err := c.store.Clear(); err != nil {
		c.log.Error("failed to clear credential store", zap.Error(err))
		return err
	}
	return nil
}

// CurrentUser fetches the authenticated user from the backend.
func (c *Client) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	var resp meResponse
	if err := c.gw.Request(ctx, PathMe, gateway.RequestOptions{}, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, models.NewAPIError(http.StatusOK, "invalid response", nil)
	}
	return resp.User, nil
}

// IsAuthenticated reports whether a session token is stored.
func (c *Client) IsAuthenticated() bool {
	return !c.store.Get().Empty()
}

// StoredUser returns the persisted user, if any.
func (c *Client) StoredUser() *models.UserProfile {
	return c.store.Get().User
}

// PendingExpiry returns the advisory expiry of the current pending login.
func (c *Client) PendingExpiry() (time.Time, bool) {
	return c.store.OTPExpiry()
}

// pending builds a PendingLogin and records its advisory expiry.
func (c *Client) pending(tempToken, identifier string) *models.PendingLogin {
	now := c.now()
	p := &models.PendingLogin{
		TempToken:  tempToken,
		Identifier: identifier,
		IssuedAt:   now,
		ExpiresAt:  now.Add(c.otpTTL),
	}
	if err := c.store.SetOTPExpiry(p.ExpiresAt); err != nil {
		c.log.Warn("failed to record otp expiry", zap.Error(err))
	}
	return p
}

func lockMessage(resp pendingResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.LockUntil == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, resp.LockUntil); err == nil {
		return "Account is locked until " + t.Local().Format("Jan 2, 2006 3:04 PM")
	}
	return "Account is locked until " + resp.LockUntil
}

// maskIdentifier keeps identifiers out of logs in full.
func maskIdentifier(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}

// orDefault returns v, or def when v is empty (Go 1.21 stand-in for cmp.Or).
func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
