// Package chrome owns the headless Chrome process shared by rasterization and
// print surfaces.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrBrowserMissing indicates no Chrome/Chromium binary could be found.
	ErrBrowserMissing = errors.New("chrome browser not installed")
	// ErrBrowserClosed indicates the browser was shut down.
	ErrBrowserClosed = errors.New("chrome browser closed")
)

var candidateBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Options configures the shared browser.
type Options struct {
	// ExecPath overrides binary discovery when set.
	ExecPath string
	// MaxTabs bounds concurrently open tabs across all sessions.
	MaxTabs int64
}

// Browser lazily starts one headless Chrome and hands out tabs.
type Browser struct {
	opts Options
	log  logrus.FieldLogger
	tabs *semaphore.Weighted

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	closed        bool
}

func NewBrowser(opts Options, log logrus.FieldLogger) *Browser {
	if opts.MaxTabs <= 0 {
		opts.MaxTabs = 2
	}
	return &Browser{
		opts: opts,
		log:  log,
		tabs: semaphore.NewWeighted(opts.MaxTabs),
	}
}

// LookPath returns the Chrome binary that will be launched.
func (b *Browser) LookPath() (string, error) {
	if strings.TrimSpace(b.opts.ExecPath) != "" {
		path, err := exec.LookPath(b.opts.ExecPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrBrowserMissing, b.opts.ExecPath)
		}
		return path, nil
	}
	for _, name := range candidateBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrBrowserMissing, strings.Join(candidateBinaries, ", "))
}

// browser starts the Chrome process on first use and returns its root context.
// Tabs derived from it share the one process.
func (b *Browser) browser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrowserClosed
	}
	if b.browserCtx != nil {
		if b.browserCtx.Err() == nil {
			return b.browserCtx, nil
		}
		// The process exited or was killed; start a new one.
		b.log.WithError(context.Cause(b.browserCtx)).Warn("chrome exited, relaunching")
		b.stopLocked()
	}

	path, err := b.LookPath()
	if err != nil {
		return nil, err
	}

	// Headless flags for containers without a display or shared memory.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	b.browserCtx, b.browserCancel, b.allocCancel = browserCtx, browserCancel, allocCancel
	b.log.WithField("path", path).Info("chrome started")
	return b.browserCtx, nil
}

// Tab is one browser target. Release must be called exactly once on every path.
type Tab struct {
	Ctx     context.Context
	release func()
}

// Release closes the tab and frees its slot. Safe to call more than once.
func (t *Tab) Release() {
	if t != nil && t.release != nil {
		t.release()
	}
}

// NewTab opens a fresh tab. It blocks until a tab slot is free or ctx is done.
// The tab outlives ctx; callers own its lifetime through Release.
func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	browserCtx, err := b.browser()
	if err != nil {
		return nil, err
	}
	if err := b.tabs.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)

	var once sync.Once
	tab := &Tab{
		Ctx: tabCtx,
		release: func() {
			once.Do(func() {
				cancel()
				b.tabs.Release(1)
			})
		},
	}

	// The first Run on a new context creates the target.
	if err := chromedp.Run(tabCtx); err != nil {
		tab.Release()
		return nil, fmt.Errorf("open chrome tab: %w", err)
	}
	return tab, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopLocked()
}

func (b *Browser) stopLocked() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx, b.browserCancel, b.allocCancel = nil, nil, nil
}

// DataURL encodes markup as a data URL Chrome can navigate to.
func DataURL(markup string) string {
	return "data:text/html;charset=utf-8," + percentEncodeForDataURL(markup)
}

// percentEncodeForDataURL escapes every byte outside the unreserved set,
// so spaces become %20 rather than +.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			// Unreserved characters per RFC 3986
			result.WriteByte(c)
		default:
			fmt.Fprintf(&result, "%%%02X", c)
		}
	}
	return result.String()
}
