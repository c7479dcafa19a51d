package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Saver materializes a file somewhere the user can pick it up.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) (location string, err error)
}

// DirSaver writes files into a downloads directory.
type DirSaver struct {
	Dir string
}

// Save writes through a temporary file that is closed on every path and removed
// unless it was renamed into place.
func (s DirSaver) Save(ctx context.Context, filename string, data []byte) (location string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".download-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	target := filepath.Join(s.Dir, filepath.Base(filename))
	if err = os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("move into place: %w", err)
	}
	return target, nil
}

// DownloadAdapter saves the artifact as <artifactName>.pdf.
type DownloadAdapter struct {
	saver Saver
}

func NewDownloadAdapter(saver Saver) *DownloadAdapter {
	return &DownloadAdapter{saver: saver}
}

func (a *DownloadAdapter) Channel() Channel { return ChannelDownload }

func (a *DownloadAdapter) NeedsArtifact() bool { return true }

func (a *DownloadAdapter) Deliver(ctx context.Context, d Delivery) (Receipt, error) {
	location, err := a.saver.Save(ctx, d.Source.Filename(), d.Artifact.Data)
	if err != nil {
		if isCancellation(ctx, err) {
			return Receipt{}, cancelled(err)
		}
		return Receipt{}, failed(fmt.Sprintf("Could not save %s.", d.Source.Filename()), err)
	}
	return Receipt{Location: location}, nil
}
