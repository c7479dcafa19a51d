package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustSource(name, markup string, pages ...string) document.Source {
	src, err := document.New(document.Spec{
		Pages:           pages,
		CanonicalMarkup: markup,
		ArtifactName:    name,
	})
	if err != nil {
		panic(err)
	}
	return src
}

// fakeRasterizer optionally blocks until released so tests can observe Generating.
type fakeRasterizer struct {
	mu      sync.Mutex
	calls   []string
	fail    []error
	block   bool
	started chan struct{}
	release chan struct{}
	panics  bool
}

func newBlockingRasterizer() *fakeRasterizer {
	return &fakeRasterizer{
		block:   true,
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, src document.Source) (*Artifact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src.ArtifactName())
	var err error
	if len(f.fail) > 0 {
		err, f.fail = f.fail[0], f.fail[1:]
	}
	f.mu.Unlock()

	if f.panics {
		panic("render target exploded")
	}
	if f.block {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename: src.Filename(),
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.7 " + src.CanonicalMarkup()),
		Pages:    1,
	}, nil
}

func (f *fakeRasterizer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSaver struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (s *fakeSaver) Save(ctx context.Context, filename string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return "/downloads/" + filename, nil
}

type fakeSurface struct {
	mu       sync.Mutex
	failures int
	attempts int
	closed   int
	// rejectErr, when set, is returned once the surface is ready.
	rejectErr error
}

func (s *fakeSurface) Print(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return "", fmt.Errorf("%w: attempt %d", ErrSurfaceNotReady, s.attempts)
	}
	if s.rejectErr != nil {
		return "", s.rejectErr
	}
	return "Office-42", nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeOpener struct {
	surface *fakeSurface
	err     error
	opened  int
}

func (o *fakeOpener) OpenSurface(ctx context.Context, src document.Source) (Surface, error) {
	o.opened++
	if o.err != nil {
		return nil, o.err
	}
	return o.surface, nil
}

// recordingClock stands in for timers in the print adapter.
type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
	after  []time.Duration
}

func (c *recordingClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *recordingClock) afterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	c.after = append(c.after, d)
	c.mu.Unlock()
	f()
}

func (c *recordingClock) total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

func newTestPrintAdapter(opener SurfaceOpener, clock *recordingClock) *PrintAdapter {
	a := NewPrintAdapter(opener, DefaultPrintRetry, 2*time.Second, quietLogger())
	a.sleep = clock.sleep
	a.after = clock.afterFunc
	return a
}

type fakeSharer struct {
	available bool
	probes    int
	err       error
	shared    []ShareFile
}

func (s *fakeSharer) Available(ctx context.Context) bool {
	s.probes++
	return s.available
}

func (s *fakeSharer) Share(ctx context.Context, file ShareFile) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.shared = append(s.shared, file)
	return "https://desk.example/s/tok", nil
}

var errBoom = errors.New("boom")
