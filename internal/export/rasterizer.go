package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/chrome"
	"ledgerdesk/api/internal/document"
)

// ChromeRasterizer renders canonical markup off-screen in headless Chrome at a
// fixed device scale, captures it, and assembles the bands into an A4 PDF.
type ChromeRasterizer struct {
	browser *chrome.Browser
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewChromeRasterizer(browser *chrome.Browser, timeout time.Duration, log logrus.FieldLogger) *ChromeRasterizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRasterizer{browser: browser, timeout: timeout, log: log}
}

func (r *ChromeRasterizer) Rasterize(ctx context.Context, src document.Source) (*Artifact, error) {
	markup, err := PageDocument(src)
	if err != nil {
		return nil, fmt.Errorf("build render document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The tab is the off-screen render target; it belongs to this call only.
	tab, err := r.browser.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("create render target: %w", err)
	}
	defer tab.Release()
	stop := context.AfterFunc(ctx, tab.Release)
	defer stop()

	var (
		fontsReady bool
		shot       []byte
	)
	err = chromedp.Run(tab.Ctx,
		chromedp.EmulateViewport(ContentWidthCSS, ContentHeightCSS, chromedp.EmulateScale(DeviceScale)),
		chromedp.Navigate(chrome.DataURL(markup)),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
		chromedp.FullScreenshot(&shot, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture document: %w", err)
	}
	if len(shot) == 0 {
		return nil, ErrEmptyCapture
	}

	capture, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	if over := ClippedWidth(capture, DeviceScale); over > 0 {
		r.log.WithFields(logrus.Fields{
			"artifact":   src.Filename(),
			"capture_px": capture.Bounds().Dx(),
			"clipped_px": over,
		}).Warn("document wider than the printable area; right edge clipped")
	}
	pages, err := Paginate(capture, DeviceScale)
	if err != nil {
		return nil, err
	}
	data, err := Assemble(ctx, pages)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Filename: src.Filename(),
		MimeType: "application/pdf",
		Data:     data,
		Pages:    len(pages),
	}, nil
}
