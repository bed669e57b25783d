package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/ResQWave/internal/models"
)

// State is the client-observable state of one login attempt.
type State int

const (
	StateIdle State = iota
	StateCredentialsSubmitted
	StateAwaitingCode
	StateCodeRejected
	StateVerified
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCredentialsSubmitted:
		return "credentials submitted"
	case StateAwaitingCode:
		return "awaiting code"
	case StateCodeRejected:
		return "code rejected"
	case StateVerified:
		return "verified"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// ErrRequestInFlight is returned when a step is started while another one of
// the same attempt is still outstanding.
var ErrRequestInFlight = errors.New("a request is already in progress")

// ErrNoPendingLogin is returned by Verify and Resend outside the code-entry states.
var ErrNoPendingLogin = errors.New("no login is waiting for a code")

// Attempt drives one login attempt through its states on behalf of a screen.
// It also owns the screen's loading flag: a second step started while one is
// outstanding fails with ErrRequestInFlight.
type Attempt struct {
	c *Client

	mu       sync.Mutex
	state    State
	pending  *models.PendingLogin
	inFlight bool
}

// NewAttempt starts an attempt in StateIdle.
func (c *Client) NewAttempt() *Attempt {
	return &Attempt{c: c}
}

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Pending returns a copy of the pending login, or nil.
func (a *Attempt) Pending() *models.PendingLogin {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return nil
	}
	p := *a.pending
	return &p
}

// Loading reports whether a step is outstanding.
func (a *Attempt) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// Submit sends credentials. Success moves to StateAwaitingCode; any failure
// other than local validation returns the attempt to StateIdle.
func (a *Attempt) Submit(ctx context.Context, identifier, password string) error {
	prev, _, err := a.begin(func(State) bool { return true })
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.state = StateCredentialsSubmitted
	a.mu.Unlock()

	p, err := a.c.Login(ctx, identifier, password)

	a.mu.Lock()
	defer a.finish()
	switch {
	case err == nil:
		a.state, a.pending = StateAwaitingCode, p
	case errors.Is(err, models.ErrValidation):
		a.state = prev
	default:
		a.state, a.pending = StateIdle, nil
	}
	return err
}

// Verify submits a code. Success is terminal; a rejected code keeps the same
// temporary token usable; lockouts and session failures end the attempt.
func (a *Attempt) Verify(ctx context.Context, code string) (*Session, error) {
	_, pending, err := a.begin(codeEntry)
	if err != nil {
		return nil, err
	}

	s, err := a.c.Verify(ctx, pending.TempToken, code)

	a.mu.Lock()
	defer a.finish()
	switch {
	case err == nil:
		a.state, a.pending = StateVerified, nil
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNetwork):
		// no verdict from the server; the code can be retried
	case errors.Is(err, models.ErrAPI):
		a.state = StateCodeRejected
	default:
		a.state, a.pending = StateIdle, nil
	}
	return s, err
}

// Resend requests a new code and returns to StateAwaitingCode.
func (a *Attempt) Resend(ctx context.Context) error {
	_, old, err := a.begin(codeEntry)
	if err != nil {
		return err
	}

	p, err := a.c.Resend(ctx, old.TempToken)

	a.mu.Lock()
	defer a.finish()
	switch {
	case err == nil:
		p.Identifier = old.Identifier
		a.state, a.pending = StateAwaitingCode, p
	case errors.Is(err, models.ErrAccountLocked), errors.Is(err, models.ErrAuthExpired):
		a.state, a.pending = StateIdle, nil
	}
	return err
}

// Expire moves a code-entry attempt to StateExpired once the advisory expiry
// has passed. It reports whether the attempt expired.
func (a *Attempt) Expire(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight || !codeEntry(a.state) || a.pending == nil || !a.pending.Expired(now) {
		return false
	}
	a.state, a.pending = StateExpired, nil
	return true
}

// Reset discards the attempt, e.g. when the user navigates back.
func (a *Attempt) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state, a.pending = StateIdle, nil
}

func codeEntry(s State) bool {
	return s == StateAwaitingCode || s == StateCodeRejected
}

// begin marks the attempt busy if allowed is true for the current state. It
// returns the state and a copy of the pending login at that moment.
func (a *Attempt) begin(allowed func(State) bool) (State, *models.PendingLogin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight {
		return a.state, nil, ErrRequestInFlight
	}
	if !allowed(a.state) || (codeEntry(a.state) && a.pending == nil) {
		return a.state, nil, ErrNoPendingLogin
	}
	a.inFlight = true
	var p *models.PendingLogin
	if a.pending != nil {
		cp := *a.pending
		p = &cp
	}
	return a.state, p, nil
}

// finish clears the busy flag and releases the lock taken by the caller.
func (a *Attempt) finish() {
	a.inFlight = false
	a.mu.Unlock()
}
