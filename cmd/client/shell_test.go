package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/ResQWave/internal/client/auth"
	"github.com/atinyakov/ResQWave/internal/client/countdown"
	"github.com/atinyakov/ResQWave/internal/client/credstore"
	"github.com/atinyakov/ResQWave/internal/client/gateway"
	"github.com/atinyakov/ResQWave/internal/client/neighborhood"
	"github.com/atinyakov/ResQWave/internal/client/prompt"
	"github.com/atinyakov/ResQWave/internal/client/session"
	"github.com/atinyakov/ResQWave/internal/config"
	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a scripted focal API.
func backend(t *testing.T, revoked bool) *httptest.Server {
	t.Helper()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authorized := func(r *http.Request) bool {
		return !revoked && r.Header.Get("Authorization") == "Bearer session-1"
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case auth.PathLogin:
			write(w, http.StatusOK, map[string]any{"message": "Code sent", "tempToken": "tmp-1"})
		case auth.PathVerify:
			write(w, http.StatusOK, map[string]any{
				"token": "session-1",
				"user":  models.UserProfile{ID: "FP001", Name: "Juan", Email: "juan@resqwave.ph", Role: models.RoleFocalPerson},
			})
		case auth.PathResend:
			write(w, http.StatusOK, map[string]any{"tempToken": "tmp-2"})
		case neighborhood.PathMapOwn:
			if !authorized(r) {
				write(w, http.StatusUnauthorized, map[string]any{"message": "Token revoked"})
				return
			}
			write(w, http.StatusOK, map[string]any{
				"neighborhoodID": "N-01",
				"address":        `{"coordinates":"120.9842, 14.5995","address":"Tondo"}`,
				"focalPerson":    map[string]any{"name": "Juan"},
			})
		case auth.PathLogout:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestShell(t *testing.T, srv *httptest.Server, input string, cooldown int) (*shell, *bytes.Buffer, *credstore.Store) {
	t.Helper()
	var out bytes.Buffer
	store := credstore.New(credstore.NewMemoryKV(), nil)
	guard := session.NewGuard(nil)
	gw := gateway.New(srv.URL, srv.Client(), store, guard, nil)
	sh := newShell(
		prompt.New(strings.NewReader(input), &out),
		&out,
		auth.New(gw, store, nil),
		neighborhood.New(gw, nil),
		countdown.New(countdown.WithInterval(time.Hour)),
		guard,
		cooldown,
	)
	return sh, &out, store
}

func TestShell_LoginFlow(t *testing.T) {
	srv := backend(t, false)
	defer srv.Close()

	input := strings.Join([]string{
		"login", "0912 345 6789", "secret1",
		"resend",
		"status",
		"verify 123456",
		"own",
		"logout",
		"status",
		"exit",
	}, "\n") + "\n"
	sh, out, store := newTestShell(t, srv, input, 30)
	sh.run(context.Background())

	got := out.String()
	assert.Contains(t, got, "A verification code was sent to 09123456789")
	assert.Contains(t, got, "Resend (30s): please wait")
	assert.Contains(t, got, "Login: awaiting code")
	assert.Contains(t, got, "Welcome, Juan (focalPerson)")
	assert.Contains(t, got, "Tondo")
	assert.Contains(t, got, "Logged out")
	assert.Contains(t, got, "Not signed in")
	assert.True(t, strings.HasSuffix(got, "Bye\n"))
	assert.True(t, store.Get().Empty())
}

func TestShell_ResendAfterCooldown(t *testing.T) {
	srv := backend(t, false)
	defer srv.Close()

	sh, out, _ := newTestShell(t, srv, "login\njuan@resqwave.ph\npw\nresend\n", 0)
	sh.run(context.Background())

	assert.Contains(t, out.String(), "A new code was sent.")
	assert.Equal(t, "tmp-2", sh.attempt.Pending().TempToken)
}

func TestShell_SessionExpiredCallback(t *testing.T) {
	srv := backend(t, false)
	defer srv.Close()

	sh, out, store := newTestShell(t, srv, "login\njuan@resqwave.ph\npw\nverify 123456\nown\n", 30)
	require.NoError(t, store.Set("stale", models.UserProfile{ID: "FP001"}))
	sh.run(context.Background())

	// verify replaces the stale token, so own succeeds.
	assert.Contains(t, out.String(), "Tondo")

	revokedSrv := backend(t, true)
	defer revokedSrv.Close()
	sh2, out2, store2 := newTestShell(t, revokedSrv, "own\nstatus\n", 30)
	require.NoError(t, store2.Set("session-1", models.UserProfile{ID: "FP001"}))
	sh2.run(context.Background())

	assert.Contains(t, out2.String(), models.DefaultSessionExpiredMessage)
	assert.NotContains(t, out2.String(), "Error:")
	assert.Contains(t, out2.String(), "Not signed in")
	assert.True(t, store2.Get().Empty())
}

func TestShell_UnknownCommand(t *testing.T) {
	srv := backend(t, false)
	defer srv.Close()

	sh, out, _ := newTestShell(t, srv, "dance\nhelp\n", 30)
	sh.run(context.Background())
	assert.Contains(t, out.String(), "Unknown command")
	assert.Contains(t, out.String(), "verify [code]")
}

func TestOpenKV(t *testing.T) {
	kv, err := openKV(&config.ClientOptions{Ephemeral: true})
	require.NoError(t, err)
	assert.IsType(t, &credstore.MemoryKV{}, kv)

	kv, err = openKV(&config.ClientOptions{StatePath: t.TempDir() + "/creds.json", Passphrase: "device secret"})
	require.NoError(t, err)
	require.NoError(t, kv.Store(map[string]string{"k": "v"}))
	got, err := kv.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got["k"])
}

func TestShell_LoginRejectedWithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid email/phone number or password"}`))
	}))
	defer srv.Close()

	sh, out, _ := newTestShell(t, srv, "login\njuan@resqwave.ph\nwrong\n", 30)
	sh.run(context.Background())

	got := out.String()
	assert.NotContains(t, got, models.DefaultSessionExpiredMessage)
	assert.Contains(t, got, "Error: Invalid email/phone number or password")
}
