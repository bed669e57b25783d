// Package credstore persists the session token and user profile on the device.
package credstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// Persisted keys.
const (
	KeyToken     = "auth_token"
	KeyUser      = "auth_user"
	KeyOTPExpiry = "focalOtpExpiry"
)

// Store is the Credential Store. Token and user are always written and
// removed together; the last writer wins.
type Store struct {
	kv  KeyValue
	log *zap.Logger
	mu  sync.Mutex
}

// New returns a Store over kv.
func New(kv KeyValue, log *zap.Logger) *Store {
	return &Store{kv: kv, log: logger.OrNop(log)}
}

// Get returns the current credential. Absence and backend failures both yield
// the empty credential; failures are logged.
func (s *Store) Get() models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, err := s.kv.Load(KeyToken, KeyUser)
	if err != nil {
		s.log.Warn("credential store read failed", zap.Error(err))
		return models.Credential{}
	}

	token := vals[KeyToken]
	if token == "" {
		return models.Credential{}
	}

	cred := models.Credential{SessionToken: token}
	if raw, ok := vals[KeyUser]; ok && raw != "" {
		var u models.UserProfile
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.log.Warn("stored user is not valid JSON", zap.Error(err))
		} else {
			cred.User = &u
		}
	}
	return cred
}

// Set persists token and user in one write.
func (s *Store) Set(token string, user models.UserProfile) error {
	if token == "" {
		return models.NewValidationError("session token must not be empty")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Store(map[string]string{KeyToken: token, KeyUser: string(raw)}); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Clear removes token and user. Clearing an empty store succeeds.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(KeyToken, KeyUser); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// SetOTPExpiry records the advisory expiry of the pending login.
func (s *Store) SetOTPExpiry(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := strconv.FormatInt(t.UnixMilli(), 10)
	if err := s.kv.Store(map[string]string{KeyOTPExpiry: v}); err != nil {
		return fmt.Errorf("store otp expiry: %w", err)
	}
	return nil
}

// OTPExpiry returns the advisory expiry, if one is recorded.
func (s *Store) OTPExpiry() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals, err := s.kv.Load(KeyOTPExpiry)
	if err != nil {
		s.log.Warn("credential store read failed", zap.Error(err))
		return time.Time{}, false
	}
	raw, ok := vals[KeyOTPExpiry]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// ClearOTPExpiry removes the advisory expiry.
func (s *Store) ClearOTPExpiry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(KeyOTPExpiry); err != nil {
		return fmt.Errorf("clear otp expiry: %w", err)
	}
	return nil
}
