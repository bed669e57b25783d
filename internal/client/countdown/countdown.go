// Package countdown runs the resend cooldown shown on the verification screen.
package countdown

import (
	"sync"
	"time"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// DefaultSeconds is the cooldown used by Reset.
const DefaultSeconds = 30

// Option configures a Countdown.
type Option func(*Countdown)

// WithInterval sets the tick period. Tests shorten it. Non-positive
// periods are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithListener registers fn to receive every state change. fn runs on the
// ticking goroutine.
func WithListener(fn func(models.ResendCountdown)) Option {
	return func(c *Countdown) { c.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Countdown) { c.log = logger.OrNop(log) }
}

// Countdown decrements once per interval and enables resend at zero.
type Countdown struct {
	interval time.Duration
	onChange func(models.ResendCountdown)
	log      *zap.Logger

	mu    sync.Mutex
	state models.ResendCountdown
	gen   uint64
	stop  chan struct{}
}

// New returns a stopped Countdown with resend enabled.
func New(opts ...Option) *Countdown {
	c := &Countdown{
		interval: time.Second,
		log:      zap.NewNop(),
		state:    models.ResendCountdown{Enabled: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start restarts the countdown at seconds, cancelling any earlier run.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	c.halt()
	c.gen++
	if seconds <= 0 {
		c.state = models.ResendCountdown{Enabled: true}
	} else {
		c.state = models.ResendCountdown{RemainingSeconds: seconds}
		c.stop = make(chan struct{})
		go c.run(c.gen, c.stop)
	}
	snapshot := c.state
	c.mu.Unlock()

	c.log.Debug("resend countdown started", zap.Int("seconds", seconds))
	c.notify(snapshot)
}

// Reset restarts the countdown at DefaultSeconds, e.g. after a resend.
func (c *Countdown) Reset() {
	c.Start(DefaultSeconds)
}

// Stop ends ticking. The current state is kept. Safe to call repeatedly.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halt()
	c.gen++
}

// State returns a snapshot of the countdown.
func (c *Countdown) State() models.ResendCountdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// halt closes the running ticker's stop channel. Callers hold mu.
func (c *Countdown) halt() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) run(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := c.advance(gen); done {
				return
			}
		}
	}
}

// advance applies one tick for generation gen. It reports whether the run is
// over, either because it reached zero or because a newer run replaced it.
func (c *Countdown) advance(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return true
	}
	if c.state.RemainingSeconds > 0 {
		c.state.RemainingSeconds--
	}
	done := c.state.RemainingSeconds == 0
	if done {
		c.state.Enabled = true
		c.stop = nil
	}
	snapshot := c.state
	c.mu.Unlock()

	if done {
		c.log.Debug("resend enabled")
	}
	c.notify(snapshot)
	return done
}

func (c *Countdown) notify(s models.ResendCountdown) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
