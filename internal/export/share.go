package export

import (
	"context"
	"errors"
	"fmt"
)

// ErrShareDismissed may be returned by a Sharer when the user closed the share sheet.
var ErrShareDismissed = errors.New("share dismissed")

// ShareFile is the packaged artifact handed to a Sharer.
type ShareFile struct {
	Filename string
	MimeType string
	Data     []byte
	Title    string
	Text     string
}

// Sharer is the native share capability of the environment.
type Sharer interface {
	// Available is probed on every share attempt; it is never cached.
	Available(ctx context.Context) bool
	Share(ctx context.Context, file ShareFile) (link string, err error)
}

// ShareNote tells the user a share request became a download.
const ShareNote = "Sharing is unavailable; the file was downloaded instead."

// ShareAdapter shares the artifact, or downloads it when sharing is not
// possible here. A dismissed share is not an error.
type ShareAdapter struct {
	sharer   Sharer
	fallback *DownloadAdapter
}

func NewShareAdapter(sharer Sharer, fallback *DownloadAdapter) *ShareAdapter {
	return &ShareAdapter{sharer: sharer, fallback: fallback}
}

func (a *ShareAdapter) Channel() Channel { return ChannelShare }

func (a *ShareAdapter) NeedsArtifact() bool { return true }

func (a *ShareAdapter) Deliver(ctx context.Context, d Delivery) (Receipt, error) {
	if a.sharer == nil || !a.sharer.Available(ctx) {
		return a.fallBack(ctx, d)
	}

	link, err := a.sharer.Share(ctx, ShareFile{
		Filename: d.Source.Filename(),
		MimeType: d.Artifact.MimeType,
		Data:     d.Artifact.Data,
		Title:    d.Source.Title(),
		Text:     summary(d),
	})
	switch {
	case err == nil:
		return Receipt{Location: link}, nil
	case errors.Is(err, ErrShareDismissed), isCancellation(ctx, err):
		return Receipt{}, cancelled(err)
	default:
		return Receipt{}, failed(fmt.Sprintf("Could not share %s.", d.Source.Filename()), err)
	}
}

func (a *ShareAdapter) fallBack(ctx context.Context, d Delivery) (Receipt, error) {
	if a.fallback == nil {
		return Receipt{}, unavailable("Sharing is unavailable here.", nil)
	}
	receipt, err := a.fallback.Deliver(ctx, d)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Note = ShareNote
	return receipt, unavailable(ShareNote, nil)
}

func summary(d Delivery) string {
	pages := "1 page"
	if d.Artifact.Pages != 1 {
		pages = fmt.Sprintf("%d pages", d.Artifact.Pages)
	}
	return fmt.Sprintf("%s (%s, PDF)", d.Source.Title(), pages)
}
