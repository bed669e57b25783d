package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/atinyakov/ResQWave/internal/client/credstore"
	"github.com/atinyakov/ResQWave/internal/client/gateway"
	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

var juan = models.UserProfile{ID: "FP001", Name: "Juan Dela Cruz", Email: "juan@resqwave.ph", Role: models.RoleFocalPerson}

type recordedCall struct {
	path string
	opts gateway.RequestOptions
}

// fakeGateway records calls and answers them with handle.
type fakeGateway struct {
	calls  []recordedCall
	handle func(path string, opts gateway.RequestOptions, out any) error
}

func (f *fakeGateway) Request(_ context.Context, path string, opts gateway.RequestOptions, out any) error {
	f.calls = append(f.calls, recordedCall{path: path, opts: opts})
	if f.handle == nil {
		return nil
	}
	return f.handle(path, opts, out)
}

// reply decodes v into out the way the gateway would.
func reply(t *testing.T, out any, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

// setFailingStore accepts everything except Set.
type setFailingStore struct {
	*credstore.Store
}

func (setFailingStore) Set(string, models.UserProfile) error { return errors.New("disk full") }

func newClient(gw Requester) (*Client, *credstore.Store) {
	store := credstore.New(credstore.NewMemoryKV(), nil)
	return New(gw, store, nil, WithClock(func() time.Time { return fixedNow })), store
}

func TestLogin_NormalizesIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" 09123456789 ", "09123456789"},
		{"0912-345 6789", "09123456789"},
		{"+63 912 345 6789", "+639123456789"},
		{" juan-dela.cruz@resqwave.ph ", "juan-dela.cruz@resqwave.ph"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			gw := &fakeGateway{handle: func(path string, opts gateway.RequestOptions, out any) error {
				reply(t, out, map[string]any{"message": "Code sent", "tempToken": "tmp-1"})
				return nil
			}}
			c, _ := newClient(gw)

			_, err := c.Login(context.Background(), tt.in, "secret1")
			require.NoError(t, err)
			require.Len(t, gw.calls, 1)
			body := gw.calls[0].opts.Body.(loginRequest)
			assert.Equal(t, tt.want, body.EmailOrNumber)
			assert.Equal(t, "secret1", body.Password)
			assert.Equal(t, PathLogin, gw.calls[0].path)
			assert.Equal(t, http.MethodPost, gw.calls[0].opts.Method)
		})
	}
}

func TestLogin_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name, id, pw string
	}{
		{"empty identifier", "   ", "secret1"},
		{"not email or phone", "juan", "secret1"},
		{"short phone", "0912345", "secret1"},
		{"empty password", "juan@resqwave.ph", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			c, _ := newClient(gw)
			_, err := c.Login(context.Background(), tt.id, tt.pw)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Empty(t, gw.calls)
		})
	}
}

func TestLogin_InvalidCredentialsWith200(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"message": "Invalid email/phone number or password", "tempToken": ""})
		return nil
	}}
	c, store := newClient(gw)

	_, err := c.Login(context.Background(), "09123456789", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, "Invalid email/phone number or password", models.MessageOf(err))
	_, ok := store.OTPExpiry()
	assert.False(t, ok)
}

func TestLogin_LockedCheckedFirst(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"message": "Invalid credentials. Account locked for 15 minutes", "locked": true})
		return nil
	}}
	c, _ := newClient(gw)

	_, err := c.Login(context.Background(), "09123456789", "wrong")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials. Account locked for 15 minutes", models.MessageOf(err))
}

func TestLogin_LockedWithoutMessage(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"locked": true, "lockUntil": "not-a-time"})
		return nil
	}}
	c, _ := newClient(gw)

	_, err := c.Login(context.Background(), "09123456789", "pw")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, "Account is locked until not-a-time", models.MessageOf(err))
}

func TestLogin_ClassifiesGatewayErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api error with marker", models.NewAPIError(400, "Invalid credentials", nil), models.ErrInvalidCredentials},
		{"401 with marker", models.NewAuthExpired(401, "invalid email or password"), models.ErrInvalidCredentials},
		{"api error without marker", models.NewAPIError(500, "Internal Server Error", nil), models.ErrAPI},
		{"network", models.NewNetworkFailure(errors.New("offline")), models.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{handle: func(string, gateway.RequestOptions, any) error { return tt.err }}
			c, _ := newClient(gw)
			_, err := c.Login(context.Background(), "juan@resqwave.ph", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_MissingTempToken(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"message": "Try again later"})
		return nil
	}}
	c, _ := newClient(gw)
	_, err := c.Login(context.Background(), "juan@resqwave.ph", "pw")
	assert.ErrorIs(t, err, models.ErrAPI)
	assert.Equal(t, "Try again later", models.MessageOf(err))
}

func TestLogin_Success(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"message": "Verification code sent", "tempToken": "tmp-1"})
		return nil
	}}
	c, store := newClient(gw)

	p, err := c.Login(context.Background(), "09123456789", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tmp-1", p.TempToken)
	assert.Equal(t, "09123456789", p.Identifier)
	assert.Equal(t, fixedNow, p.IssuedAt)
	assert.Equal(t, fixedNow.Add(5*time.Minute), p.ExpiresAt)

	exp, ok := store.OTPExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(fixedNow.Add(5*time.Minute)))
	assert.True(t, store.Get().Empty(), "login alone must not create a session")
}

func TestVerify_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name, token, code string
	}{
		{"five digits", "abc", "12345"},
		{"seven digits", "abc", "1234567"},
		{"letters", "abc", "12a456"},
		{"padded", "abc", " 123456"},
		{"missing temp token", "", "123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			c, _ := newClient(gw)
			_, err := c.Verify(context.Background(), tt.token, tt.code)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Empty(t, gw.calls)
		})
	}
}

func TestVerify_StoresBeforeReturning(t *testing.T) {
	gw := &fakeGateway{handle: func(path string, opts gateway.RequestOptions, out any) error {
		assert.Equal(t, PathVerify, path)
		assert.Equal(t, verifyRequest{TempToken: "tmp-1", Code: "123456"}, opts.Body)
		reply(t, out, map[string]any{"message": "Login successful", "token": "session-1", "user": juan})
		return nil
	}}
	c, store := newClient(gw)
	require.NoError(t, store.SetOTPExpiry(fixedNow))

	s, err := c.Verify(context.Background(), "tmp-1", "123456")
	require.NoError(t, err)

	cred := store.Get()
	assert.Equal(t, "session-1", cred.SessionToken)
	require.NotNil(t, cred.User)
	assert.Equal(t, juan, *cred.User)
	assert.Equal(t, juan, s.User)
	assert.Equal(t, "Login successful", s.Message)
	_, ok := store.OTPExpiry()
	assert.False(t, ok, "advisory expiry cleared after verification")
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, juan, *c.StoredUser())
}

func TestVerify_PersistFailureIsFailure(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"token": "session-1", "user": juan})
		return nil
	}}
	inner := credstore.New(credstore.NewMemoryKV(), nil)
	c := New(gw, setFailingStore{inner}, nil)

	s, err := c.Verify(context.Background(), "tmp-1", "123456")
	assert.Nil(t, s)
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, inner.Get().Empty())
}

func TestVerify_GatewayErrorPropagatesUnchanged(t *testing.T) {
	want := models.NewAPIError(400, "Invalid or expired code", nil)
	gw := &fakeGateway{handle: func(string, gateway.RequestOptions, any) error { return want }}
	c, store := newClient(gw)

	_, err := c.Verify(context.Background(), "tmp-1", "000000")
	assert.Same(t, want, err)
	assert.True(t, store.Get().Empty())
}

func TestVerify_IncompleteResponse(t *testing.T) {
	gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{"message": "ok", "token": "session-1"})
		return nil
	}}
	c, store := newClient(gw)
	_, err := c.Verify(context.Background(), "tmp-1", "123456")
	assert.ErrorIs(t, err, models.ErrAPI)
	assert.True(t, store.Get().Empty())
}

func TestResend(t *testing.T) {
	t.Run("new token", func(t *testing.T) {
		gw := &fakeGateway{handle: func(path string, opts gateway.RequestOptions, out any) error {
			assert.Equal(t, PathResend, path)
			assert.Equal(t, resendRequest{TempToken: "tmp-1"}, opts.Body)
			reply(t, out, map[string]any{"message": "Code resent", "tempToken": "tmp-2"})
			return nil
		}}
		c, store := newClient(gw)
		p, err := c.Resend(context.Background(), "tmp-1")
		require.NoError(t, err)
		assert.Equal(t, "tmp-2", p.TempToken)
		exp, ok := store.OTPExpiry()
		require.True(t, ok)
		assert.True(t, exp.Equal(fixedNow.Add(DefaultOTPTTL)))
	})

	t.Run("token omitted", func(t *testing.T) {
		gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
			reply(t, out, map[string]any{"message": "Code resent"})
			return nil
		}}
		c, _ := newClient(gw)
		p, err := c.Resend(context.Background(), "tmp-1")
		require.NoError(t, err)
		assert.Equal(t, "tmp-1", p.TempToken)
	})

	t.Run("locked", func(t *testing.T) {
		gw := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
			reply(t, out, map[string]any{"message": "Too many attempts", "locked": true})
			return nil
		}}
		c, _ := newClient(gw)
		_, err := c.Resend(context.Background(), "tmp-1")
		assert.ErrorIs(t, err, models.ErrAccountLocked)
	})

	t.Run("empty token", func(t *testing.T) {
		gw := &fakeGateway{}
		c, _ := newClient(gw)
		_, err := c.Resend(context.Background(), " ")
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Empty(t, gw.calls)
	})
}

func TestLogout_AlwaysClears(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"backend ok", nil},
		{"backend unreachable", models.NewNetworkFailure(context.DeadlineExceeded)},
		{"backend error", models.NewAPIError(500, "boom", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{handle: func(path string, opts gateway.RequestOptions, _ any) error {
				assert.Equal(t, PathLogout, path)
				assert.Equal(t, http.MethodPost, opts.Method)
				return tt.err
			}}
			c, store := newClient(gw)
			require.NoError(t, store.Set("session-1", juan))
			require.NoError(t, store.SetOTPExpiry(fixedNow))

			assert.NoError(t, c.Logout(context.Background()))
			assert.True(t, store.Get().Empty())
			_, ok := store.OTPExpiry()
			assert.False(t, ok)
			assert.Len(t, gw.calls, 1)
		})
	}
}

func TestLogout_NoSessionSkipsBackend(t *testing.T) {
	gw := &fakeGateway{}
	c, store := newClient(gw)
	assert.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, gw.calls)
	assert.True(t, store.Get().Empty())
}

func TestCurrentUser(t *testing.T) {
	gw := &fakeGateway{handle: func(path string, opts gateway.RequestOptions, out any) error {
		assert.Equal(t, PathMe, path)
		assert.Empty(t, opts.Method)
		reply(t, out, map[string]any{"user": juan})
		return nil
	}}
	c, _ := newClient(gw)
	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, juan, *u)

	empty := &fakeGateway{handle: func(_ string, _ gateway.RequestOptions, out any) error {
		reply(t, out, map[string]any{})
		return nil
	}}
	c, _ = newClient(empty)
	_, err = c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, models.ErrAPI)
}

func TestIsInvalidCredentials(t *testing.T) {
	assert.True(t, IsInvalidCredentials("INVALID EMAIL/PHONE NUMBER OR PASSWORD"))
	assert.True(t, IsInvalidCredentials("Error: invalid credentials"))
	assert.False(t, IsInvalidCredentials("Verification code sent"))
	assert.False(t, IsInvalidCredentials(""))
}

func TestValidateIdentifier(t *testing.T) {
	kind, err := ValidateIdentifier("juan@resqwave.ph")
	require.NoError(t, err)
	assert.Equal(t, IdentifierEmail, kind)

	kind, err = ValidateIdentifier("+639123456789")
	require.NoError(t, err)
	assert.Equal(t, IdentifierPhone, kind)

	_, err = ValidateIdentifier("08123456789")
	assert.ErrorIs(t, err, models.ErrValidation)
}
