package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rankshop/rankshop/internal/core"
)

// Defaults for order submission throttling.
const (
	DefaultRateLimitWindow        = time.Minute
	DefaultRateLimitMaxAttempts   = 3
	DefaultRateLimitBlockCooldown = 10 * time.Minute
	DefaultRateLimitSweepInterval = 5 * time.Minute

	clientSignatureLimit = 50
)

// RateLimitConfig controls the fixed-window limiter.
type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BlockCooldown time.Duration `mapstructure:"block_cooldown"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RateLimitStore persists rate limit entries. Implementations must be safe
// for concurrent use.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, identifier string) (*core.RateLimitEntry, error)
	SetRateLimit(ctx context.Context, entry *core.RateLimitEntry) error
	DeleteRateLimit(ctx context.Context, identifier string) error
	// SweepRateLimits removes entries last seen before cutoff, keeping blocked
	// entries whose cooldown runs past now. It returns the number removed.
	SweepRateLimits(ctx context.Context, cutoff, now time.Time) (int, error)
}

// RateLimiter throttles order submissions per client identifier. It is
// advisory: identifiers are derived from client-supplied values.
type RateLimiter struct {
	Store  RateLimitStore
	Config RateLimitConfig
	Clock  Clock

	locks keyedMutex

	timersMu sync.Mutex
	timers   map[string]Timer
}

// NewRateLimiter builds a limiter, filling zero config values with defaults.
func NewRateLimiter(store RateLimitStore, cfg RateLimitConfig, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{
		Store:  store,
		Config: cfg.withDefaults(),
		Clock:  clock,
	}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Window <= 0 {
		c.Window = DefaultRateLimitWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultRateLimitMaxAttempts
	}
	if c.BlockCooldown <= 0 {
		c.BlockCooldown = DefaultRateLimitBlockCooldown
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultRateLimitSweepInterval
	}
	return c
}

// DeriveIdentifier builds the limiter key from a username and a client
// signature such as the User-Agent header.
func DeriveIdentifier(username, clientSignature string) string {
	name := strings.ToLower(strings.TrimSpace(username))
	signature := strings.TrimSpace(clientSignature)
	if len(signature) > clientSignatureLimit {
		signature = signature[:clientSignatureLimit]
	}
	return base64.StdEncoding.EncodeToString([]byte(name + signature))
}

// Check records an attempt for identifier and reports whether it is allowed.
func (r *RateLimiter) Check(ctx context.Context, identifier string) (bool, error) {
	if r == nil || r.Store == nil {
		return true, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(identifier) == "" {
		return false, errors.New("rate limit identifier is required")
	}

	unlock := r.locks.lock(identifier)
	defer unlock()

	cfg := r.Config.withDefaults()
	now := r.now()

	entry, err := r.Store.GetRateLimit(ctx, identifier)
	if err != nil {
		return false, err
	}

	if entry != nil && entry.Blocked {
		if entry.BlockedUntil.IsZero() || now.Before(entry.BlockedUntil) {
			entry.LastSeen = now
			return false, r.Store.SetRateLimit(ctx, entry)
		}
		// Cooldown elapsed without the timer firing (e.g. after a restart).
		r.cancelUnblock(identifier)
		entry = nil
	}

	if entry == nil {
		return true, r.Store.SetRateLimit(ctx, &core.RateLimitEntry{
			Identifier:  identifier,
			Attempts:    1,
			WindowStart: now,
			LastSeen:    now,
		})
	}

	entry.LastSeen = now

	if now.After(entry.WindowStart.Add(cfg.Window)) {
		entry.Attempts = 1
		entry.WindowStart = now
		return true, r.Store.SetRateLimit(ctx, entry)
	}

	if entry.Attempts >= cfg.MaxAttempts {
		entry.Blocked = true
		entry.BlockedUntil = now.Add(cfg.BlockCooldown)
		if err := r.Store.SetRateLimit(ctx, entry); err != nil {
			return false, err
		}
		r.scheduleUnblock(identifier, cfg.BlockCooldown)
		return false, nil
	}

	entry.Attempts++
	return true, r.Store.SetRateLimit(ctx, entry)
}

// Sweep removes entries idle for more than twice the window.
func (r *RateLimiter) Sweep(ctx context.Context) (int, error) {
	if r == nil || r.Store == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := r.Config.withDefaults()
	now := r.now()
	return r.Store.SweepRateLimits(ctx, now.Add(-2*cfg.Window), now)
}

// Start runs the periodic sweep until ctx is cancelled. onSweep, when set,
// receives the result of every pass.
func (r *RateLimiter) Start(ctx context.Context, onSweep func(removed int, err error)) {
	if r == nil || r.Store == nil {
		return
	}
	interval := r.Config.withDefaults().SweepInterval
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.stopTimers()
				return
			case <-ticker.C:
				removed, err := r.Sweep(ctx)
				if onSweep != nil {
					onSweep(removed, err)
				}
			}
		}
	}()
}

// Unblock clears any state held for identifier.
func (r *RateLimiter) Unblock(ctx context.Context, identifier string) error {
	if r == nil || r.Store == nil {
		return nil
	}
	unlock := r.locks.lock(identifier)
	defer unlock()

	r.cancelUnblock(identifier)
	return r.Store.DeleteRateLimit(ctx, identifier)
}

func (r *RateLimiter) scheduleUnblock(identifier string, after time.Duration) {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	if r.timers == nil {
		r.timers = make(map[string]Timer)
	}
	if existing, ok := r.timers[identifier]; ok {
		existing.Stop()
	}

	var timer Timer
	timer = r.Clock.AfterFunc(after, func() {
		r.timersMu.Lock()
		if current, ok := r.timers[identifier]; ok && current == timer {
			delete(r.timers, identifier)
		}
		r.timersMu.Unlock()

		unlock := r.locks.lock(identifier)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		entry, err := r.Store.GetRateLimit(ctx, identifier)
		if err != nil || entry == nil || !entry.Blocked {
			return
		}
		_ = r.Store.DeleteRateLimit(ctx, identifier)
	})
	r.timers[identifier] = timer
}

func (r *RateLimiter) cancelUnblock(identifier string) {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	if timer, ok := r.timers[identifier]; ok {
		timer.Stop()
		delete(r.timers, identifier)
	}
}

func (r *RateLimiter) stopTimers() {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	for key, timer := range r.timers {
		timer.Stop()
		delete(r.timers, key)
	}
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock.Now()
	}
	return time.Now().UTC()
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
