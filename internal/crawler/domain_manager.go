package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainManager paces page loads per host.
type DomainManager struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewDomainManager allows one page per interval on each host. A zero
// interval disables pacing.
func NewDomainManager(interval time.Duration) *DomainManager {
	return &DomainManager{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *DomainManager) limiter(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	limiter, exists := d.limiters[host]
	if !exists {
		limit := rate.Inf
		if d.interval > 0 {
			limit = rate.Every(d.interval)
		}
		// burst 1: the first request goes through, the next waits a full interval
		limiter = rate.NewLimiter(limit, 1)
		d.limiters[host] = limiter
	}
	return limiter
}

// Wait blocks until a page on targetURL's host may be loaded.
func (d *DomainManager) Wait(ctx context.Context, targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return err
	}
	return d.limiter(strings.ToLower(u.Host)).Wait(ctx)
}
