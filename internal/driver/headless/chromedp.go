// Package headless implements the page driver on headless Chrome via
// chromedp.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/marketops/stock-harvester/internal/harvest"
)

// Config controls the behavior of the headless driver.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// RowSelector locates the data rows of the rendered table.
	RowSelector  string
	WindowWidth  int
	WindowHeight int
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.RowSelector == "" {
		c.RowSelector = "table tbody tr"
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1920
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1080
	}
	return c
}

// Factory creates one exclusive browser session per harvest run. All
// sessions share a single Chrome exec allocator.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewFactory starts the exec allocator with headless flags.
func NewFactory(cfg Config) *Factory {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Factory{
		cfg:         cfg.withDefaults(),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close tears down the allocator and every session spawned from it.
func (f *Factory) Close() {
	f.allocCancel()
}

// NewSession spins up a fresh browser tab and applies viewport and
// user-agent overrides. The caller owns the session exclusively and
// must Close it on every exit path.
func (f *Factory) NewSession(ctx context.Context) (harvest.PageDriver, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)

	setupCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(f.cfg.WindowWidth), int64(f.cfg.WindowHeight)),
	}
	if f.cfg.UserAgent != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			return nil
		}))
	}
	if err := chromedp.Run(setupCtx, actions...); err != nil {
		taskCancel()
		return nil, fmt.Errorf("%w: %v", harvest.ErrDriverSetup, err)
	}

	return &Session{cfg: f.cfg, ctx: taskCtx, cancel: taskCancel}, nil
}

// Session is one exclusive headless Chrome tab implementing
// harvest.PageDriver. Not safe for concurrent use.
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes chromedp actions on the session tab while honoring the
// caller's context for cancellation and deadlines.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads the target page and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitForRows blocks until at least one row matching the configured
// selector is present. The caller bounds the wait via ctx.
func (s *Session) WaitForRows(ctx context.Context) error {
	return s.run(ctx, chromedp.WaitReady(s.cfg.RowSelector, chromedp.ByQuery))
}

// RowCells pulls the cell text of every currently rendered row in one
// script evaluation; rows without data cells are filtered out.
func (s *Session) RowCells(ctx context.Context) ([][]string, error) {
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q))
			.map(tr => Array.from(tr.querySelectorAll('td')).map(td => td.innerText))
			.filter(cells => cells.length > 0)`,
		s.cfg.RowSelector,
	)
	var rows [][]string
	if err := s.run(ctx, chromedp.Evaluate(script, &rows)); err != nil {
		return nil, fmt.Errorf("evaluate row cells: %w", err)
	}
	return rows, nil
}

// ScrollAdvance scrolls down by one viewport height to trigger lazy
// rendering progressively.
func (s *Session) ScrollAdvance(ctx context.Context) error {
	if err := s.run(ctx,
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight);`, nil),
	); err != nil {
		return fmt.Errorf("scroll advance: %w", err)
	}
	return nil
}

// ScrollToBottom jumps to the absolute bottom of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	if err := s.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.documentElement.scrollHeight);`, nil),
	); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// PageHeight returns the document scroll height.
func (s *Session) PageHeight(ctx context.Context) (int, error) {
	var height int
	if err := s.run(ctx,
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &height),
	); err != nil {
		return 0, fmt.Errorf("measure page height: %w", err)
	}
	return height, nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Close releases the browser tab. Safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}
