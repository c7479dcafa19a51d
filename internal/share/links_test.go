package share

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*LinkStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewLinkStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create link store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewLinkStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewLinkStoreUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := NewLinkStore("redis://" + addr); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestSaveAndLookupLink(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	link := Link{
		URL:       "https://objects.example/invoices/abc/INV-100.pdf?X-Amz-Signature=x",
		Filename:  "INV-100.pdf",
		Title:     "Invoice 100",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, "tok1", link); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Lookup(ctx, "tok1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.URL != link.URL || got.Filename != link.Filename {
		t.Errorf("Lookup() = %+v, want %+v", got, link)
	}
}

func TestLookupExpiredLink(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	link := Link{URL: "https://x", Filename: "INV-1.pdf", ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Save(ctx, "tok2", link); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := store.Lookup(ctx, "tok2"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestSaveRejectsExpiredLink(t *testing.T) {
	store, _ := setupTestRedis(t)
	link := Link{URL: "https://x", Filename: "INV-1.pdf", ExpiresAt: time.Now().Add(-time.Second)}
	if err := store.Save(context.Background(), "tok3", link); err == nil {
		t.Fatal("expected error for expired link")
	}
}

func TestRevokeLink(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	link := Link{URL: "https://x", Filename: "INV-1.pdf", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(ctx, "tok4", link); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Revoke(ctx, "tok4"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if s.Exists("share:tok4") {
		t.Error("expected key to be deleted")
	}
	if err := store.Revoke(ctx, "tok4"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("expected ErrLinkNotFound on second revoke, got %v", err)
	}
}

func TestShortURLAndToken(t *testing.T) {
	if got := ShortURL("https://desk.example/", "abc"); got != "https://desk.example/s/abc" {
		t.Errorf("ShortURL() = %q", got)
	}
	a, b := NewToken(), NewToken()
	if a == b || len(a) != 16 {
		t.Errorf("unexpected tokens %q %q", a, b)
	}
}

func TestNewPublisherUnconfigured(t *testing.T) {
	p, err := NewPublisher(Config{}, nil, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if p != nil {
		t.Fatal("expected nil publisher without storage config")
	}
	if p.Available(context.Background()) {
		t.Error("nil publisher must not be available")
	}
}
