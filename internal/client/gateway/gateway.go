// Package gateway is the single choke point for backend calls. It attaches the
// stored session token, interprets response status codes and ends the session
// when the backend rejects the token.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

const headerAuthorization = "Authorization"

// CredentialStore is the subset of the Credential Store the gateway needs.
type CredentialStore interface {
	Get() models.Credential
	Clear() error
}

// LogoutNotifier is told when the session has been invalidated.
type LogoutNotifier interface {
	Invoke()
}

// RequestOptions describes one call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Body is JSON-encoded when non-nil.
	Body any
	// Headers are merged last. Authorization is reserved and ignored here.
	Headers http.Header
}

// Gateway issues backend requests.
type Gateway struct {
	baseURL string
	client  *http.Client
	store   CredentialStore
	guard   LogoutNotifier
	log     *zap.Logger
}

// New returns a Gateway rooted at baseURL. guard may be nil.
func New(baseURL string, client *http.Client, store CredentialStore, guard LogoutNotifier, log *zap.Logger) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		store:   store,
		guard:   guard,
		log:     logger.OrNop(log),
	}
}

// Request performs the call and decodes a 2xx JSON body into out (which may be nil).
//
// Failures are *models.Error values of kind ErrAuthExpired (401/403, after the
// store has been cleared and the guard invoked), ErrAPI (any other non-2xx or
// an undecodable body) or ErrNetwork (no response).
func (g *Gateway) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	cred := g.store.Get()
	if cred.SessionToken != "" {
		req.Header.Set(headerAuthorization, "Bearer "+cred.SessionToken)
	}
	for k, vs := range opts.Headers {
		if http.CanonicalHeaderKey(k) == headerAuthorization {
			continue
		}
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	g.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Bool("token", cred.SessionToken != ""),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug("api request failed", zap.String("path", path), zap.Error(err))
		return models.NewNetworkFailure(err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))

	g.log.Debug("api response", zap.String("path", path), zap.Int("status", resp.StatusCode))

	// A rejected session is acted on even when its body is unreadable.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		g.invalidate()
		if readErr != nil {
			raw = nil
		}
		return models.NewAuthExpired(resp.StatusCode, jsonMessage(raw))
	}
	if readErr != nil {
		return models.NewNetworkFailure(fmt.Errorf("read response: %w", readErr))
	}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.NewAPIError(resp.StatusCode, errorMessage(resp.StatusCode, raw), nil)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.NewAPIError(resp.StatusCode, "invalid response", err)
	}
	return nil
}

// invalidate clears the store before notifying the guard, so the callback
// never observes the stale token.
func (g *Gateway) invalidate() {
	g.log.Info("authentication rejected, clearing session")
	if err := g.store.Clear(); err != nil {
		g.log.Error("failed to clear credential store", zap.Error(err))
	}
	if g.guard != nil {
		g.guard.Invoke()
	}
}

// jsonMessage returns the "message" field of a JSON object body, or "".
func jsonMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}

// errorMessage picks the JSON message, then the raw text, then the reason phrase.
func errorMessage(status int, raw []byte) string {
	if msg := jsonMessage(raw); msg != "" {
		return msg
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	if reason := http.StatusText(status); reason != "" {
		return reason
	}
	return fmt.Sprintf("request failed with status %d", status)
}
