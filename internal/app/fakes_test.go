package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/share"
	"ledgerdesk/api/internal/store"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeDocuments struct {
	docs    map[string]store.InvoiceDocument
	pingErr error
}

func (f *fakeDocuments) GetInvoiceDocument(ctx context.Context, id string) (store.InvoiceDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return store.InvoiceDocument{}, fmt.Errorf("invoice document %s: %w", id, store.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeDocuments) ListInvoiceDocuments(ctx context.Context, limit int) ([]store.InvoiceSummary, error) {
	items := make([]store.InvoiceSummary, 0, len(f.docs))
	for _, doc := range f.docs {
		items = append(items, store.InvoiceSummary{ID: doc.ID, Title: doc.Title, ArtifactName: doc.ArtifactName, PageCount: len(doc.Pages)})
	}
	return items, nil
}

func (f *fakeDocuments) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeLinks map[string]share.Link

func (f fakeLinks) Lookup(ctx context.Context, token string) (share.Link, error) {
	link, ok := f[token]
	if !ok {
		return share.Link{}, share.ErrLinkNotFound
	}
	return link, nil
}

func (f fakeLinks) Revoke(ctx context.Context, token string) error {
	if _, ok := f[token]; !ok {
		return share.ErrLinkNotFound
	}
	delete(f, token)
	return nil
}

// gateRasterizer produces a small fake PDF. When gated it waits for a release
// so tests can observe a generating job.
type gateRasterizer struct {
	mu      sync.Mutex
	gated   bool
	started chan struct{}
	release chan struct{}
	calls   int
}

func newGateRasterizer() *gateRasterizer {
	return &gateRasterizer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gateRasterizer) Rasterize(ctx context.Context, src document.Source) (*export.Artifact, error) {
	g.mu.Lock()
	g.calls++
	gated := g.gated
	g.mu.Unlock()

	if gated {
		g.started <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &export.Artifact{
		Filename: src.Filename(),
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.7\n" + src.CanonicalMarkup()),
		Pages:    1,
	}, nil
}

func (g *gateRasterizer) gate() {
	g.mu.Lock()
	g.gated = true
	g.mu.Unlock()
}

func (g *gateRasterizer) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}
}

type noSurfaces struct{}

func (noSurfaces) OpenSurface(ctx context.Context, src document.Source) (export.Surface, error) {
	return nil, errors.New("no print spooler")
}

type offlineSharer struct{}

func (offlineSharer) Available(ctx context.Context) bool { return false }

func (offlineSharer) Share(ctx context.Context, file export.ShareFile) (string, error) {
	return "", errors.New("offline")
}

type testEnv struct {
	rasterizer  *gateRasterizer
	downloadDir string
}

func newTestService(t *testing.T, docs *fakeDocuments, links fakeLinks) *Service {
	svc, _ := newTestServiceEnv(t, docs, links)
	return svc
}

func newTestServiceEnv(t *testing.T, docs *fakeDocuments, links fakeLinks) (*Service, *testEnv) {
	t.Helper()
	env := &testEnv{rasterizer: newGateRasterizer(), downloadDir: t.TempDir()}
	download := export.NewDownloadAdapter(export.DirSaver{Dir: env.downloadDir})

	opts := Options{
		Pipeline: Pipeline{
			Rasterizer: env.rasterizer,
			Adapters: []export.Adapter{
				download,
				export.NewPrintAdapter(noSurfaces{}, export.DefaultPrintRetry, 0, quietLogger()),
				export.NewShareAdapter(offlineSharer{}, download),
			},
		},
		Log: quietLogger(),
	}
	if docs != nil {
		opts.Store = docs
	}
	if links != nil {
		opts.Links = links
	}

	svc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.CloseAll)
	return svc, env
}

func invoiceSpec(name string, pages ...string) *document.Spec {
	return &document.Spec{
		Pages:           pages,
		CanonicalMarkup: "<main>" + fmt.Sprint(len(pages)) + " pages</main>",
		ArtifactName:    name,
	}
}
