package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/chrome"
	"ledgerdesk/api/internal/config"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/logging"
	"ledgerdesk/api/internal/printer"
	"ledgerdesk/api/internal/share"
)

func newLogger(cfg config.Config) (*logrus.Logger, io.Closer, error) {
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	return log, closer, nil
}

// pipeline is the export machinery built from configuration plus everything
// that must be released on exit.
type pipeline struct {
	rasterizer export.Rasterizer
	adapters   []export.Adapter
	links      *share.LinkStore
	browser    *chrome.Browser
}

func (p *pipeline) Close() {
	p.browser.Close()
	if p.links != nil {
		_ = p.links.Close()
	}
}

func buildPipeline(cfg config.Config, log logrus.FieldLogger) (*pipeline, error) {
	browser := chrome.NewBrowser(chrome.Options{
		ExecPath: cfg.ChromePath,
		MaxTabs:  int64(cfg.MaxTabs),
	}, log)
	if path, err := browser.LookPath(); err != nil {
		log.WithError(err).Warn("chrome not found: exports will fail until it is installed")
	} else {
		log.WithField("chrome", path).Info("chrome located")
	}

	p := &pipeline{
		rasterizer: export.NewChromeRasterizer(browser, cfg.RenderTimeout, log),
		browser:    browser,
	}

	spooler := printer.LP{Command: cfg.PrintCommand, Destination: cfg.PrintDestination}
	if err := spooler.Available(); err != nil {
		log.WithError(err).Warn("print spooler unavailable: print requests will report it")
	}
	printAdapter := export.NewPrintAdapter(
		export.NewChromeSurfaces(browser, spooler, cfg.RenderTimeout),
		export.RetryPolicy{MaxAttempts: cfg.PrintAttempts, Delay: cfg.PrintDelay},
		cfg.PrintReleaseDelay,
		log,
	)

	download := export.NewDownloadAdapter(export.DirSaver{Dir: cfg.DownloadDir})

	var sharer export.Sharer
	if cfg.SharingEnabled() {
		links, err := share.NewLinkStore(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("share links disabled: presigned URLs are returned directly")
		} else {
			p.links = links
		}
		publisher, err := share.NewPublisher(share.Config{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			Prefix:        "exports",
			Expiry:        cfg.ShareTTL,
			PublicBaseURL: cfg.PublicBaseURL,
		}, p.links, log)
		if err != nil {
			p.Close()
			return nil, err
		}
		if publisher != nil {
			sharer = publisher
		}
	} else {
		log.Info("object storage not configured: share requests fall back to download")
	}

	p.adapters = []export.Adapter{download, printAdapter, export.NewShareAdapter(sharer, download)}
	return p, nil
}
