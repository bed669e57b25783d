// Package session lets the request gateway tell the application shell that the
// session has ended, without the gateway knowing anything about the shell.
package session

import (
	"fmt"
	"sync"

	"github.com/atinyakov/ResQWave/internal/logger"
	"go.uber.org/zap"
)

// Guard holds at most one logout callback. Construct one per process (or per
// test) and share it by reference.
type Guard struct {
	mu       sync.Mutex
	callback func()
	log      *zap.Logger
}

// NewGuard returns a Guard with an empty slot.
func NewGuard(log *zap.Logger) *Guard {
	return &Guard{log: logger.OrNop(log)}
}

// RegisterLogoutCallback stores fn, replacing any earlier callback. A nil fn
// empties the slot.
func (g *Guard) RegisterLogoutCallback(fn func()) {
	g.mu.Lock()
	g.callback = fn
	g.mu.Unlock()
}

// Invoke runs the registered callback, if any. A panicking callback is
// recovered and logged.
func (g *Guard) Invoke() {
	g.mu.Lock()
	fn := g.callback
	g.mu.Unlock()

	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("logout callback panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
