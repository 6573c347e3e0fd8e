// Package probe implements a cheap reachability check that runs before
// a browser session is spent on the target page.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls preflight behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Preflight performs a plain HTTP GET against the target URL. A page
// that cannot even answer a plain request will not render under a
// headless browser either, so the run fails fast without launching
// Chrome.
type Preflight struct {
	cfg Config
}

// New builds a Preflight.
func New(cfg Config) *Preflight {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Preflight{cfg: cfg}
}

// Check fetches the URL and fails on transport errors and non-success
// statuses.
func (p *Preflight) Check(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("preflight canceled: %w", err)
	}

	c := colly.NewCollector(colly.IgnoreRobotsTxt())
	c.SetRequestTimeout(p.cfg.Timeout)
	if p.cfg.UserAgent != "" {
		c.UserAgent = p.cfg.UserAgent
	}

	var status int
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})

	if err := c.Visit(url); err != nil {
		return fmt.Errorf("preflight fetch %s: %w", url, err)
	}
	c.Wait()

	if status != http.StatusOK {
		return fmt.Errorf("preflight fetch %s: unexpected status %d", url, status)
	}
	return nil
}
