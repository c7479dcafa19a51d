package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdesk/api/internal/document"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/store"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var de *DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de.Status
}

func TestCreateSessionFromInlineDocument(t *testing.T) {
	svc := newTestService(t, nil, nil)

	state, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Document: invoiceSpec("INV-100", "<p>1</p>", "<p>2</p>"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, "INV-100.pdf", state.Filename)
	assert.Equal(t, 2, state.Preview.PageCount)
	assert.Equal(t, 0, state.Preview.PageIndex)
	assert.Equal(t, 1.0, state.Preview.Zoom)
	assert.Equal(t, export.StatusIdle, state.Job.Status)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestCreateSessionFromStoredInvoice(t *testing.T) {
	docs := &fakeDocuments{docs: map[string]store.InvoiceDocument{
		"inv-7": {ID: "inv-7", Title: "Invoice 7", ArtifactName: "INV 7", CanonicalMarkup: "<p>7</p>", Pages: []string{"<p>7</p>"}},
	}}
	svc := newTestService(t, docs, nil)

	state, err := svc.CreateSession(context.Background(), CreateSessionInput{InvoiceID: "inv-7"})
	require.NoError(t, err)
	assert.Equal(t, "INV-7.pdf", state.Filename)
	assert.Equal(t, "Invoice 7", state.Title)

	_, err = svc.CreateSession(context.Background(), CreateSessionInput{InvoiceID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, CreateSessionInput{})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.CreateSession(ctx, CreateSessionInput{Document: &document.Spec{CanonicalMarkup: "<p>x</p>"}})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.CreateSession(ctx, CreateSessionInput{InvoiceID: "inv-1"})
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err), "no store configured")
}

func TestNavigationAndZoomClamp(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Document: invoiceSpec("INV-100", "<p>1</p>", "<p>2</p>"),
	})
	require.NoError(t, err)
	id := state.ID

	state, err = svc.Navigate(id, Backward)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Preview.PageIndex)

	for i := 0; i < 3; i++ {
		state, err = svc.Navigate(id, Forward)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, state.Preview.PageIndex)

	for i := 0; i < 10; i++ {
		state, err = svc.Zoom(id, ZoomIn)
		require.NoError(t, err)
	}
	assert.Equal(t, 2.0, state.Preview.Zoom)

	state, err = svc.ToggleFullscreen(id)
	require.NoError(t, err)
	assert.True(t, state.Preview.Fullscreen)

	_, err = svc.Navigate(id, Direction("sideways"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
}

func TestRenderPreviewShowsCurrentPage(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Document: invoiceSpec("INV-100", "<p>first</p>", "<p>second</p>"),
	})
	require.NoError(t, err)

	_, err = svc.Navigate(state.ID, Forward)
	require.NoError(t, err)

	page, err := svc.RenderPreview(state.ID)
	require.NoError(t, err)
	assert.Contains(t, page, "sandbox")
	assert.Contains(t, page, "second")
	assert.NotContains(t, page, "<p>second</p>", "fragment must be escaped into srcdoc")
}

func TestRenderPreviewEmptyDocument(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Document: &document.Spec{ArtifactName: "INV-0"},
	})
	require.NoError(t, err)

	page, err := svc.RenderPreview(state.ID)
	require.NoError(t, err)
	assert.Contains(t, page, "No document to preview yet.")
}

func TestExportDownloadWritesFile(t *testing.T) {
	svc, env := newTestServiceEnv(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>")})
	require.NoError(t, err)

	result, err := svc.RequestExport(context.Background(), state.ID, "download")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "Saved INV-100.pdf.", result.Notification)

	data, err := os.ReadFile(filepath.Join(env.downloadDir, "INV-100.pdf"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF")

	artifact, err := svc.Artifact(state.ID)
	require.NoError(t, err)
	assert.Equal(t, data, artifact.Data)
}

func TestExportPreviewStateDoesNotAffectArtifact(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>", "<p>2</p>")})
	require.NoError(t, err)

	_, err = svc.RequestExport(context.Background(), state.ID, "download")
	require.NoError(t, err)
	first, err := svc.Artifact(state.ID)
	require.NoError(t, err)

	_, _ = svc.Navigate(state.ID, Forward)
	_, _ = svc.Zoom(state.ID, ZoomIn)
	_, _ = svc.ToggleFullscreen(state.ID)

	_, err = svc.RequestExport(context.Background(), state.ID, "download")
	require.NoError(t, err)
	second, err := svc.Artifact(state.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestExportShareFallsBackToDownload(t *testing.T) {
	svc, env := newTestServiceEnv(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>")})
	require.NoError(t, err)

	result, err := svc.RequestExport(context.Background(), state.ID, "share")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, export.ReasonChannelUnavailable, result.Reason)
	assert.Equal(t, export.ShareNote, result.Notification)
	assert.FileExists(t, filepath.Join(env.downloadDir, "INV-100.pdf"))
}

func TestExportPrintUnavailable(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>")})
	require.NoError(t, err)

	result, err := svc.RequestExport(context.Background(), state.ID, "print")
	require.NoError(t, err)
	assert.Equal(t, export.ReasonChannelUnavailable, result.Reason)
	assert.NotEmpty(t, result.Notification)
}

func TestExportUnknownChannelAndSession(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>")})
	require.NoError(t, err)

	_, err = svc.RequestExport(context.Background(), state.ID, "fax")
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = svc.RequestExport(context.Background(), "nope", "download")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestCloseDuringGenerationIsSilent(t *testing.T) {
	svc, env := newTestServiceEnv(t, nil, nil)
	env.rasterizer.gate()
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>")})
	require.NoError(t, err)

	done := make(chan ExportResult, 1)
	go func() {
		result, _ := svc.RequestExport(context.Background(), state.ID, "download")
		done <- result
	}()
	env.rasterizer.waitStarted(t)

	require.NoError(t, svc.CloseSession(state.ID))

	select {
	case result := <-done:
		assert.Equal(t, export.ReasonUserCancelled, result.Reason)
		assert.Empty(t, result.Notification)
	case <-time.After(2 * time.Second):
		t.Fatal("export did not resolve after close")
	}
	assert.NoFileExists(t, filepath.Join(env.downloadDir, "INV-100.pdf"))

	_, err = svc.Session(state.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestInitSessionResetsPreviewAndJob(t *testing.T) {
	svc := newTestService(t, nil, nil)
	state, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-100", "<p>1</p>", "<p>2</p>")})
	require.NoError(t, err)

	_, _ = svc.Navigate(state.ID, Forward)
	_, err = svc.RequestExport(context.Background(), state.ID, "download")
	require.NoError(t, err)

	state, err = svc.InitSession(state.ID, *invoiceSpec("INV-200", "<p>a</p>"))
	require.NoError(t, err)
	assert.Equal(t, "INV-200.pdf", state.Filename)
	assert.Equal(t, 0, state.Preview.PageIndex)
	assert.Equal(t, export.StatusIdle, state.Job.Status)

	_, err = svc.Artifact(state.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestSweepIdleClosesStalePanels(t *testing.T) {
	svc := newTestService(t, nil, nil)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	stale, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-1", "<p>1</p>")})
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	fresh, err := svc.CreateSession(context.Background(), CreateSessionInput{Document: invoiceSpec("INV-2", "<p>2</p>")})
	require.NoError(t, err)

	closed := svc.SweepIdle(30 * time.Minute)
	assert.Equal(t, []string{stale.ID}, closed)

	_, err = svc.Session(fresh.ID)
	assert.NoError(t, err)
}

func TestResolveShare(t *testing.T) {
	svc := newTestService(t, nil, fakeLinks{"tok": {URL: "https://minio.example/obj?sig=1"}})

	link, err := svc.ResolveShare(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "https://minio.example/obj?sig=1", link.URL)

	_, err = svc.ResolveShare(context.Background(), "gone")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
