// Package ratelimit throttles goal mutations. Every client gets a separate
// fixed one-minute window per operation, so a burst of deposits does not
// lock the same client out of toggling a goal's lock.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Rule places a request in a window. A Rule with an empty Operation is not
// counted.
type Rule struct {
	Client    string
	Operation string
}

// Config holds the per-window budget.
type Config struct {
	// PerMinute is the budget of one client for one operation.
	PerMinute  int
	// IdleAfter forgets windows untouched for this long.
	IdleAfter  time.Duration
	SweepEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.PerMinute <= 0 {
		c.PerMinute = 60
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = 10 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 5 * time.Minute
	}
	return c
}

type windowKey struct {
	client    string
	operation string
}

type counter struct {
	start time.Time
	last  time.Time
	used  int
}

// Limiter counts requests per client and operation. Stop releases its
// sweeping goroutine.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[windowKey]*counter

	rejected atomic.Int64
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		windows: make(map[windowKey]*counter),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Take counts one request. Once the window's budget is spent it reports
// false together with the time left until the window resets.
func (l *Limiter) Take(rule Rule) (bool, time.Duration) {
	if rule.Operation == "" {
		return true, 0
	}
	now := l.now()
	key := windowKey{client: rule.Client, operation: rule.Operation}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.windows[key]
	if !ok || now.Sub(c.start) >= window {
		c = &counter{start: now}
		l.windows[key] = c
	}
	c.last = now
	if c.used >= l.cfg.PerMinute {
		l.rejected.Add(1)
		return false, c.start.Add(window).Sub(now)
	}
	c.used++
	return true, 0
}

// Rejected counts requests refused since start.
func (l *Limiter) Rejected() int64 { return l.rejected.Load() }

// Windows is the number of live client/operation windows.
func (l *Limiter) Windows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.cfg.IdleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.windows {
		if c.last.Before(cutoff) {
			delete(l.windows, k)
		}
	}
}

func (l *Limiter) sweepLoop() {
	defer close(l.stopped)
	t := time.NewTicker(l.cfg.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeping goroutine and waits for it. Safe to call twice.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		<-l.stopped
	})
}

// Middleware counts each request under the Rule classify returns and
// answers refused ones through onLimit after setting Retry-After.
func (l *Limiter) Middleware(classify func(*http.Request) Rule, onLimit func(http.ResponseWriter, *http.Request, Rule)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := classify(r)
			ok, wait := l.Take(rule)
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit == nil {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r, rule)
		})
	}
}
