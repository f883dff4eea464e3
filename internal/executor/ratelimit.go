package executor

import (
	"sync"
	"time"

	"github.com/stackwarden/warden/internal/policy"
)

// RateLimitConfig defines rate limiting rules for mutating actions.
type RateLimitConfig struct {
	// Global is the global rate limit across all actions.
	Global *RateLimit

	// PerAction maps action names to per-action rate limits.
	PerAction map[string]*RateLimit
}

// RateLimit defines a single rate limit: max requests per time window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// slidingWindow tracks request timestamps for rate limiting.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Limiter enforces per-action and global rate limits using a sliding window.
type Limiter struct {
	config  RateLimitConfig
	mu      sync.RWMutex
	windows map[string]*slidingWindow // key: action name or "_global"
}

// NewLimiter creates a new rate limiter.
func NewLimiter(config RateLimitConfig) *Limiter {
	return &Limiter{
		config:  config,
		windows: make(map[string]*slidingWindow),
	}
}

// Allow reports whether an execution of the action may proceed now. When it
// may not, retryAfter estimates how long until a slot frees up.
func (l *Limiter) Allow(action string) (bool, time.Duration) {
	now := time.Now()

	if l.config.Global != nil {
		if ok, wait := l.take("_global", l.config.Global, now); !ok {
			return false, wait
		}
	}

	if limit, ok := l.config.PerAction[action]; ok && limit != nil {
		if ok, wait := l.take(action, limit, now); !ok {
			return false, wait
		}
	}

	return true, 0
}

func (l *Limiter) take(key string, limit *RateLimit, now time.Time) (bool, time.Duration) {
	w := l.window(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-limit.Window)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) >= limit.Max {
		oldest := w.timestamps[0]
		return false, oldest.Add(limit.Window).Sub(now)
	}

	w.timestamps = append(w.timestamps, now)
	return true, 0
}

// RateLimitConfigFromSettings converts policy rate limit settings to a
// limiter config. Malformed windows are skipped rather than fatal.
func RateLimitConfigFromSettings(settings *policy.RateLimitSettings) *RateLimitConfig {
	if settings == nil {
		return nil
	}

	cfg := &RateLimitConfig{
		PerAction: make(map[string]*RateLimit),
	}

	if settings.Global != nil {
		d, err := time.ParseDuration(settings.Global.Window)
		if err == nil {
			cfg.Global = &RateLimit{Max: settings.Global.Max, Window: d}
		}
	}

	for action, rule := range settings.PerAction {
		d, err := time.ParseDuration(rule.Window)
		if err == nil {
			cfg.PerAction[action] = &RateLimit{Max: rule.Max, Window: d}
		}
	}

	return cfg
}

func (l *Limiter) window(key string) *slidingWindow {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[key]; ok {
		return w
	}
	w = &slidingWindow{}
	l.windows[key] = w
	return w
}
