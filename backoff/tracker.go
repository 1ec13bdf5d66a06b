package backoff

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/util"
)

// ErrHostLimited is returned by Do while the target host is inside a backoff
// window. The caller should leave the delivery queued and try again later.
var ErrHostLimited = errors.New("host is backing off")

// LimitedHost describes one host currently under backoff, for dashboards.
type LimitedHost struct {
	Host      string
	Until     time.Time
	Remaining time.Duration
}

// Tracker remembers which remote hosts asked us to slow down. A 429 or 503
// response marks the host unavailable until now plus a duration derived from
// the response headers; any 2xx clears the marker immediately. Checks are
// pure in-memory reads, so they are safe on the hot delivery path.
type Tracker struct {
	conf *util.ConfigHolder

	mu    sync.RWMutex
	hosts map[string]time.Time

	now func() time.Time
}

func NewTracker(conf *util.ConfigHolder) *Tracker {
	return &Tracker{
		conf:  conf,
		hosts: make(map[string]time.Time),
		now:   time.Now,
	}
}

// ShouldBackoff reports whether deliveries to the host should be deferred.
// The stored expiry is re-checked against the clock, so a stale entry the
// sweep has not collected yet still reads as expired.
func (t *Tracker) ShouldBackoff(host string) bool {
	host = domain.NormalizeHost(host)

	t.mu.RLock()
	until, ok := t.hosts[host]
	t.mu.RUnlock()

	return ok && until.After(t.now())
}

// RecordResponse updates the marker for a host from an HTTP response: 2xx
// clears it, 429 and 503 set or refresh it, everything else is ignored.
func (t *Tracker) RecordResponse(host string, status int, header http.Header) {
	host = domain.NormalizeHost(host)
	if host == "" {
		return
	}

	switch {
	case status >= 200 && status < 300:
		t.mu.Lock()
		delete(t.hosts, host)
		t.mu.Unlock()
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		now := t.now()
		duration := backoffDuration(header, t.defaultBackoff(), t.maxBackoff(), now)
		t.mu.Lock()
		t.hosts[host] = now.Add(duration)
		t.mu.Unlock()
		log.Printf("Backing off from %s for %s after HTTP %d", host, duration, status)
	}
}

// Do wraps one outbound request in the check-then-record protocol: it
// refuses with ErrHostLimited while the host is backing off, otherwise runs
// the request and records the response.
func (t *Tracker) Do(host string, fn func() (*http.Response, error)) (*http.Response, error) {
	if t.ShouldBackoff(host) {
		return nil, ErrHostLimited
	}
	resp, err := fn()
	if err != nil {
		return nil, err
	}
	t.RecordResponse(host, resp.StatusCode, resp.Header)
	return resp, nil
}

// LimitedHosts lists hosts currently inside a backoff window with their
// remaining wait, sorted by host name.
func (t *Tracker) LimitedHosts() []LimitedHost {
	now := t.now()

	t.mu.RLock()
	out := make([]LimitedHost, 0, len(t.hosts))
	for host, until := range t.hosts {
		if until.After(now) {
			out = append(out, LimitedHost{Host: host, Until: until, Remaining: until.Sub(now)})
		}
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// Clear drops the marker for a host regardless of expiry. Used by operators
// to unblock delivery by hand.
func (t *Tracker) Clear(host string) bool {
	host = domain.NormalizeHost(host)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.hosts[host]
	delete(t.hosts, host)
	return ok
}

// Sweep drops expired markers and returns how many were removed.
func (t *Tracker) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for host, until := range t.hosts {
		if !until.After(now) {
			delete(t.hosts, host)
			removed++
		}
	}
	return removed
}

// Run sweeps expired markers in the background until the context is
// canceled. The interval is re-read every tick so it is hot-configurable.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.sweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Backoff sweep running every %s", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := t.Sweep(); removed > 0 {
				log.Printf("Swept %d expired backoff markers", removed)
			}
			if next := t.sweepInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				log.Printf("Backoff sweep interval changed to %s", interval)
			}
		}
	}
}

func (t *Tracker) defaultBackoff() time.Duration {
	secs := t.conf.Conf().Delivery.DefaultBackoffSeconds
	if secs <= 0 {
		secs = util.DefaultBackoffSeconds
	}
	return time.Duration(secs) * time.Second
}

func (t *Tracker) maxBackoff() time.Duration {
	secs := t.conf.Conf().Delivery.MaxBackoffSeconds
	if secs <= 0 {
		secs = util.DefaultMaxBackoffSeconds
	}
	return time.Duration(secs) * time.Second
}

func (t *Tracker) sweepInterval() time.Duration {
	secs := t.conf.Conf().Delivery.SweepIntervalSeconds
	if secs <= 0 {
		secs = util.DefaultSweepIntervalSeconds
	}
	return time.Duration(secs) * time.Second
}

// backoffDuration derives a wait from response headers, in priority order:
// Retry-After as integer seconds, Retry-After as an HTTP-date delta against
// now, X-RateLimit-Reset as an epoch-seconds delta, else the default. The
// result is floored at zero and clamped to the maximum.
func backoffDuration(header http.Header, def, max time.Duration, now time.Time) time.Duration {
	duration := def
	found := false

	if value := strings.TrimSpace(header.Get("Retry-After")); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			duration = time.Duration(secs) * time.Second
			found = true
		} else if at, err := http.ParseTime(value); err == nil {
			duration = at.Sub(now)
			found = true
		}
	}

	if !found {
		if value := strings.TrimSpace(header.Get("X-RateLimit-Reset")); value != "" {
			if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
				duration = time.Unix(epoch, 0).Sub(now)
			}
		}
	}

	if duration < 0 {
		duration = 0
	}
	if duration > max {
		duration = max
	}
	return duration
}
