package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ledgerdesk/api/internal/app"
	"ledgerdesk/api/internal/config"
	"ledgerdesk/api/internal/store"
)

const (
	sweepInterval = time.Minute
	panelIdleTTL  = 30 * time.Minute
)

func newServeCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, logCloser, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := app.Options{Log: log}

			if strings.TrimSpace(cfg.DatabaseURL) != "" {
				db, err := store.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				applied, err := store.ApplyMigrations(ctx, db, store.Migrations())
				if err != nil {
					return err
				}
				if len(applied) > 0 {
					log.WithField("migrations", applied).Info("migrations applied")
				}
				opts.Store = store.NewPostgresStore(db)
			} else {
				log.Info("no database configured: only inline documents can be exported")
			}

			if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer pipe.Close()
			opts.Pipeline = app.Pipeline{Rasterizer: pipe.rasterizer, Adapters: pipe.adapters}
			if pipe.links != nil {
				opts.Links = pipe.links
			}

			service, err := app.New(opts)
			if err != nil {
				return err
			}
			defer service.CloseAll()
			go sweepPanels(ctx, service)

			httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log)
			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpServer.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				// Exports block until rendering and delivery finish.
				WriteTimeout: cfg.RenderTimeout + 30*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.Addr).Info("ledgerdesk api listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("shutdown error")
			}
			return nil
		},
	}
}

func sweepPanels(ctx context.Context, service *app.Service) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.SweepIdle(panelIdleTTL)
		}
	}
}
