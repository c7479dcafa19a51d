package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"ledgerdesk/api/internal/chrome"
	"ledgerdesk/api/internal/document"
)

// Spooler accepts print-ready PDFs.
type Spooler interface {
	Available() error
	Submit(ctx context.Context, title string, pdf []byte) (string, error)
}

// ChromeSurfaces opens print surfaces as headless Chrome tabs and feeds the
// browser's own vector print output to a spooler.
type ChromeSurfaces struct {
	browser     *chrome.Browser
	spooler     Spooler
	openTimeout time.Duration
}

func NewChromeSurfaces(browser *chrome.Browser, spooler Spooler, openTimeout time.Duration) *ChromeSurfaces {
	if openTimeout <= 0 {
		openTimeout = 15 * time.Second
	}
	return &ChromeSurfaces{browser: browser, spooler: spooler, openTimeout: openTimeout}
}

func (s *ChromeSurfaces) OpenSurface(ctx context.Context, src document.Source) (Surface, error) {
	if err := s.spooler.Available(); err != nil {
		return nil, err
	}

	markup, err := PageDocument(src)
	if err != nil {
		return nil, fmt.Errorf("build print document: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()

	tab, err := s.browser.NewTab(openCtx)
	if err != nil {
		return nil, err
	}

	runCtx, stopRun := boundTo(tab.Ctx, openCtx)
	defer stopRun()
	if err := chromedp.Run(runCtx, chromedp.Navigate(chrome.DataURL(markup))); err != nil {
		tab.Release()
		return nil, fmt.Errorf("load print surface: %w", err)
	}

	return &chromeSurface{tab: tab, spooler: s.spooler, title: src.Title()}, nil
}

type chromeSurface struct {
	tab     *chrome.Tab
	spooler Spooler
	title   string
}

func (s *chromeSurface) Print(ctx context.Context) (string, error) {
	runCtx, stop := boundTo(s.tab.Ctx, ctx)
	defer stop()

	var state string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSurfaceNotReady, err)
	}
	if state != "complete" {
		return "", fmt.Errorf("%w: document is %s", ErrSurfaceNotReady, state)
	}

	var pdfData []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdfData, _, err = page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(PaperWidthIn).
			WithPaperHeight(PaperHeightIn).
			WithMarginTop(MarginIn).
			WithMarginBottom(MarginIn).
			WithMarginLeft(MarginIn).
			WithMarginRight(MarginIn).
			Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("print to pdf: %w", err)
	}

	ref, err := s.spooler.Submit(ctx, s.title, pdfData)
	if err != nil {
		return "", fmt.Errorf("submit to spooler: %w", err)
	}
	return ref, nil
}

func (s *chromeSurface) Close() error {
	s.tab.Release()
	return nil
}

// boundTo derives a run context from a chromedp tab context that also stops
// when ctx does. Canceling a derived context ends the run, not the tab.
func boundTo(tabCtx, ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
