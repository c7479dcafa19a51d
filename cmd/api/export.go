package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ledgerdesk/api/internal/config"
	"ledgerdesk/api/internal/document"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/store"
)

type exportFlags struct {
	markupFile string
	invoiceID  string
	name       string
	title      string
	channel    string
}

func newExportCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one document through a channel and exit",
		Long: `Renders a document to PDF and delivers it once.
Example: ledgerdesk export --markup invoice.html --name INV-100 --channel download`,
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

			channel, err := export.ParseChannel(strings.ToLower(flags.channel))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			src, err := loadExportSource(ctx, cfg, flags)
			if err != nil {
				return err
			}

			pipe, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer pipe.Close()

			coordinator := export.NewCoordinator(pipe.rasterizer, log, pipe.adapters...)
			coordinator.Init(src)
			outcome := coordinator.RequestExport(ctx, channel)

			if note := outcome.Notification(); note != "" {
				fmt.Fprintln(cmd.OutOrStdout(), note)
			}
			if outcome.Location != "" {
				fmt.Fprintln(cmd.OutOrStdout(), outcome.Location)
			}
			if !outcome.OK && !outcome.Silent() && outcome.Note == "" {
				return fmt.Errorf("export %s: %s", channel, outcome.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.markupFile, "markup", "", "HTML file with the canonical markup")
	cmd.Flags().StringVar(&flags.invoiceID, "invoice", "", "stored invoice document id")
	cmd.Flags().StringVar(&flags.name, "name", "", "artifact name, without .pdf (defaults to the file name)")
	cmd.Flags().StringVar(&flags.title, "title", "", "display title")
	cmd.Flags().StringVar(&flags.channel, "channel", string(export.ChannelDownload), "download, print or share")
	cmd.MarkFlagsMutuallyExclusive("markup", "invoice")
	cmd.MarkFlagsOneRequired("markup", "invoice")
	return cmd
}

func loadExportSource(ctx context.Context, cfg config.Config, flags exportFlags) (document.Source, error) {
	if flags.invoiceID != "" {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return document.Source{}, errors.New("--invoice needs a database")
		}
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return document.Source{}, err
		}
		defer db.Close()
		doc, err := store.NewPostgresStore(db).GetInvoiceDocument(ctx, flags.invoiceID)
		if err != nil {
			return document.Source{}, err
		}
		return doc.Source()
	}

	markup, err := os.ReadFile(flags.markupFile)
	if err != nil {
		return document.Source{}, fmt.Errorf("read markup: %w", err)
	}
	name := flags.name
	if name == "" {
		base := filepath.Base(flags.markupFile)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return document.New(document.Spec{
		Pages:           []string{string(markup)},
		CanonicalMarkup: string(markup),
		ArtifactName:    document.SanitizeName(name),
		Title:           flags.title,
	})
}
