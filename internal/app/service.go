package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/preview"
	"ledgerdesk/api/internal/share"
	"ledgerdesk/api/internal/store"
)

type documentStore interface {
	GetInvoiceDocument(context.Context, string) (store.InvoiceDocument, error)
	ListInvoiceDocuments(context.Context, int) ([]store.InvoiceSummary, error)
	Ping(context.Context) error
}

type linkResolver interface {
	Lookup(context.Context, string) (share.Link, error)
	Revoke(context.Context, string) error
}

// Pipeline is the export machinery shared by every panel. Each panel gets its
// own Coordinator over the same rasterizer and adapters.
type Pipeline struct {
	Rasterizer export.Rasterizer
	Adapters   []export.Adapter
}

// Service keeps the open export panels of the dashboard in memory. Nothing in
// a panel is persisted.
type Service struct {
	store    documentStore
	links    linkResolver
	pipeline Pipeline
	renderer *preview.Renderer
	log      logrus.FieldLogger
	now      func() time.Time

	mu     sync.Mutex
	panels map[string]*panel
}

// panel is one open export panel. mu guards the preview session and source;
// the coordinator synchronizes itself so exports never hold mu.
type panel struct {
	id          string
	coordinator *export.Coordinator

	mu        sync.Mutex
	source    document.Source
	preview   *preview.Session
	createdAt time.Time
	touchedAt time.Time
}

// Options wires the optional collaborators of a Service. A nil Store limits
// sessions to inline documents; nil Links disables share redirects.
type Options struct {
	Store    documentStore
	Links    linkResolver
	Pipeline Pipeline
	Log      logrus.FieldLogger
}

func New(opts Options) (*Service, error) {
	renderer, err := preview.NewRenderer()
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:    opts.Store,
		links:    opts.Links,
		pipeline: opts.Pipeline,
		renderer: renderer,
		log:      log,
		now:      time.Now,
		panels:   make(map[string]*panel),
	}, nil
}

type CreateSessionInput struct {
	InvoiceID string         `json:"invoiceId"`
	Document  *document.Spec `json:"document"`
}

type SessionState struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	ArtifactName string             `json:"artifactName"`
	Filename     string             `json:"filename"`
	Preview      preview.State      `json:"preview"`
	Job          export.JobSnapshot `json:"job"`
}

type ExportResult struct {
	export.Outcome
	Notification string `json:"notification"`
}

func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

func (s *Service) DocumentsConfigured() bool {
	return s.store != nil
}

func (s *Service) ListDocuments(ctx context.Context, limit int) ([]store.InvoiceSummary, error) {
	if s.store == nil {
		return nil, domainError(http.StatusServiceUnavailable, "DOCUMENTS_UNAVAILABLE", "Document store not configured", nil)
	}
	return s.store.ListInvoiceDocuments(ctx, limit)
}

// CreateSession opens a panel on a stored invoice or an inline document.
func (s *Service) CreateSession(ctx context.Context, input CreateSessionInput) (SessionState, error) {
	src, err := s.resolveSource(ctx, input)
	if err != nil {
		return SessionState{}, err
	}

	now := s.now()
	p := &panel{
		id:          uuid.NewString(),
		coordinator: export.NewCoordinator(s.pipeline.Rasterizer, s.log, s.pipeline.Adapters...),
		source:      src,
		preview:     preview.NewSession(src),
		createdAt:   now,
		touchedAt:   now,
	}
	p.coordinator.Init(src)

	s.mu.Lock()
	s.panels[p.id] = p
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session_id": p.id, "artifact": src.Filename(), "pages": src.PageCount()}).Info("export panel opened")
	return s.state(p), nil
}

func (s *Service) resolveSource(ctx context.Context, input CreateSessionInput) (document.Source, error) {
	invoiceID := strings.TrimSpace(input.InvoiceID)
	switch {
	case invoiceID != "" && input.Document != nil:
		return document.Source{}, validationError("provide either invoiceId or document, not both")
	case input.Document != nil:
		return sourceFromSpec(*input.Document)
	case invoiceID != "":
		if s.store == nil {
			return document.Source{}, domainError(http.StatusServiceUnavailable, "DOCUMENTS_UNAVAILABLE", "Document store not configured", nil)
		}
		doc, err := s.store.GetInvoiceDocument(ctx, invoiceID)
		if err != nil {
			return document.Source{}, err
		}
		return doc.Source()
	default:
		return document.Source{}, validationError("invoiceId or document is required")
	}
}

func sourceFromSpec(spec document.Spec) (document.Source, error) {
	src, err := document.New(spec)
	if err != nil {
		return document.Source{}, validationError(err.Error())
	}
	return src, nil
}

func (s *Service) panel(id string) (*panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[id]
	if !ok {
		return nil, sessionNotFound(id)
	}
	return p, nil
}

func (s *Service) Session(id string) (SessionState, error) {
	p, err := s.panel(id)
	if err != nil {
		return SessionState{}, err
	}
	return s.state(p), nil
}

func (s *Service) state(p *panel) SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SessionState{
		ID:           p.id,
		Title:        p.source.Title(),
		ArtifactName: p.source.ArtifactName(),
		Filename:     p.source.Filename(),
		Preview:      p.preview.State(),
		Job:          p.coordinator.Job(),
	}
}

// InitSession replaces the panel's document, resetting the preview and the
// export job. Work in flight for the old document is discarded.
func (s *Service) InitSession(id string, spec document.Spec) (SessionState, error) {
	p, err := s.panel(id)
	if err != nil {
		return SessionState{}, err
	}
	src, err := sourceFromSpec(spec)
	if err != nil {
		return SessionState{}, err
	}

	p.mu.Lock()
	p.source = src
	p.preview = preview.NewSession(src)
	p.touchedAt = s.now()
	p.coordinator.Init(src)
	p.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session_id": id, "artifact": src.Filename()}).Info("export panel document replaced")
	return s.state(p), nil
}

// CloseSession discards the panel. A request still generating resolves as a
// silent cancellation.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	p, ok := s.panels[id]
	delete(s.panels, id)
	s.mu.Unlock()
	if !ok {
		return sessionNotFound(id)
	}
	p.coordinator.Close()
	s.log.WithField("session_id", id).Info("export panel closed")
	return nil
}

// CloseAll discards every panel; used on shutdown.
func (s *Service) CloseAll() {
	s.mu.Lock()
	panels := s.panels
	s.panels = make(map[string]*panel)
	s.mu.Unlock()
	for _, p := range panels {
		p.coordinator.Close()
	}
}

// SweepIdle closes panels untouched for longer than maxIdle, skipping panels
// that are still generating. It returns the ids it closed.
func (s *Service) SweepIdle(maxIdle time.Duration) []string {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var stale []*panel
	for id, p := range s.panels {
		p.mu.Lock()
		idle := p.touchedAt.Before(cutoff)
		p.mu.Unlock()
		if idle && p.coordinator.Job().Status != export.StatusGenerating {
			stale = append(stale, p)
			delete(s.panels, id)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, p := range stale {
		p.coordinator.Close()
		ids = append(ids, p.id)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		s.log.WithField("sessions", len(ids)).Info("idle export panels closed")
	}
	return ids
}

type Direction string

const (
	Forward  Direction = "next"
	Backward Direction = "previous"
	ZoomIn   Direction = "in"
	ZoomOut  Direction = "out"
)

// Navigate moves the preview one page. At either end it is a no-op.
func (s *Service) Navigate(id string, dir Direction) (SessionState, error) {
	return s.updatePreview(id, func(ps *preview.Session) error {
		switch dir {
		case Forward:
			ps.Pagination.Next()
		case Backward:
			ps.Pagination.Previous()
		default:
			return validationError(fmt.Sprintf("unknown page direction %q", dir))
		}
		return nil
	})
}

// Zoom steps the preview zoom, clamped to its range.
func (s *Service) Zoom(id string, dir Direction) (SessionState, error) {
	return s.updatePreview(id, func(ps *preview.Session) error {
		switch dir {
		case ZoomIn:
			ps.Zoom.In()
		case ZoomOut:
			ps.Zoom.Out()
		default:
			return validationError(fmt.Sprintf("unknown zoom direction %q", dir))
		}
		return nil
	})
}

func (s *Service) ToggleFullscreen(id string) (SessionState, error) {
	return s.updatePreview(id, func(ps *preview.Session) error {
		ps.ToggleFullscreen()
		return nil
	})
}

func (s *Service) updatePreview(id string, fn func(*preview.Session) error) (SessionState, error) {
	p, err := s.panel(id)
	if err != nil {
		return SessionState{}, err
	}
	p.mu.Lock()
	err = fn(p.preview)
	p.touchedAt = s.now()
	p.mu.Unlock()
	if err != nil {
		return SessionState{}, err
	}
	return s.state(p), nil
}

// RenderPreview returns the host page showing the current preview page.
func (s *Service) RenderPreview(id string) (string, error) {
	p, err := s.panel(id)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	view := preview.ViewOf(p.source.Title(), p.preview)
	p.mu.Unlock()
	return s.renderer.Render(view)
}

// RequestExport runs one export on the panel. It blocks until the outcome is
// known; failures are reported in the result, never as an error.
func (s *Service) RequestExport(ctx context.Context, id, channel string) (ExportResult, error) {
	ch, err := export.ParseChannel(strings.ToLower(strings.TrimSpace(channel)))
	if err != nil {
		return ExportResult{}, validationError(err.Error())
	}
	p, err := s.panel(id)
	if err != nil {
		return ExportResult{}, err
	}
	p.mu.Lock()
	p.touchedAt = s.now()
	p.mu.Unlock()

	outcome := p.coordinator.RequestExport(ctx, ch)
	s.log.WithFields(logrus.Fields{
		"session_id": id,
		"job_id":     outcome.JobID,
		"channel":    outcome.Channel,
		"ok":         outcome.OK,
		"reason":     outcome.Reason,
	}).Info("export requested")
	return ExportResult{Outcome: outcome, Notification: outcome.Notification()}, nil
}

// Artifact returns the PDF of the panel's Ready job.
func (s *Service) Artifact(id string) (*export.Artifact, error) {
	p, err := s.panel(id)
	if err != nil {
		return nil, err
	}
	artifact, ok := p.coordinator.Artifact()
	if !ok {
		return nil, domainError(http.StatusNotFound, "ARTIFACT_NOT_READY", "No exported document is ready for this session", nil)
	}
	return artifact, nil
}

// ResolveShare maps a share token to its download URL.
func (s *Service) ResolveShare(ctx context.Context, token string) (share.Link, error) {
	if s.links == nil {
		return share.Link{}, domainError(http.StatusNotFound, "LINK_NOT_FOUND", "Share link not found or expired", nil)
	}
	link, err := s.links.Lookup(ctx, token)
	if errors.Is(err, share.ErrLinkNotFound) {
		return share.Link{}, domainError(http.StatusNotFound, "LINK_NOT_FOUND", "Share link not found or expired", nil)
	}
	if err != nil {
		return share.Link{}, err
	}
	return link, nil
}

// RevokeShare withdraws a share token so its short link stops resolving.
func (s *Service) RevokeShare(ctx context.Context, token string) error {
	if s.links == nil {
		return domainError(http.StatusNotFound, "LINK_NOT_FOUND", "Share link not found or expired", nil)
	}
	err := s.links.Revoke(ctx, token)
	if errors.Is(err, share.ErrLinkNotFound) {
		return domainError(http.StatusNotFound, "LINK_NOT_FOUND", "Share link not found or expired", nil)
	}
	if err != nil {
		return err
	}
	s.log.WithField("token", token).Info("share link revoked")
	return nil
}

// SessionCount reports how many panels are open.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panels)
}
