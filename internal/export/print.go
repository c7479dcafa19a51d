package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
)

// ErrSurfaceNotReady is returned by Surface.Print while the surface is still
// loading. It is the only print error that is retried.
var ErrSurfaceNotReady = errors.New("print surface not ready")

// Surface is a separately opened document that prints with its own engine,
// keeping text selectable instead of rasterized.
type Surface interface {
	// Print fires the print action and returns a job reference.
	Print(ctx context.Context) (string, error)
	Close() error
}

// SurfaceOpener opens a surface loaded with the canonical markup. An error
// means no surface exists at all; retrying cannot help.
type SurfaceOpener interface {
	OpenSurface(ctx context.Context, src document.Source) (Surface, error)
}

// PrintAdapter prints the canonical markup. Surface readiness cannot be
// observed, so printing is retried under a bounded RetryPolicy.
type PrintAdapter struct {
	opener       SurfaceOpener
	policy       RetryPolicy
	releaseAfter time.Duration
	log          logrus.FieldLogger

	sleep sleepFunc
	after func(d time.Duration, f func())
}

func NewPrintAdapter(opener SurfaceOpener, policy RetryPolicy, releaseAfter time.Duration, log logrus.FieldLogger) *PrintAdapter {
	return &PrintAdapter{
		opener:       opener,
		policy:       policy,
		releaseAfter: releaseAfter,
		log:          log,
		sleep:        sleepContext,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (a *PrintAdapter) Channel() Channel { return ChannelPrint }

func (a *PrintAdapter) NeedsArtifact() bool { return false }

func (a *PrintAdapter) Deliver(ctx context.Context, d Delivery) (Receipt, error) {
	if d.Source.IsEmpty() {
		return Receipt{}, failed("There is nothing to print yet.", document.ErrEmptySource)
	}

	surface, err := a.opener.OpenSurface(ctx, d.Source)
	if err != nil {
		if isCancellation(ctx, err) {
			return Receipt{}, cancelled(err)
		}
		return Receipt{}, unavailable("The print window could not be opened. Download the PDF and print it instead.", err)
	}

	var jobRef string
	attempts, err := a.policy.Do(ctx, a.sleep, func(attempt int) error {
		ref, perr := surface.Print(ctx)
		if perr != nil {
			a.log.WithError(perr).WithField("attempt", attempt).Debug("print attempt failed")
			if !errors.Is(perr, ErrSurfaceNotReady) {
				return permanent(perr)
			}
			return perr
		}
		jobRef = ref
		return nil
	})

	switch {
	case err == nil:
		// The spooler may still be reading from the surface.
		a.releaseLater(surface)
		return Receipt{Location: jobRef}, nil
	case isCancellation(ctx, err):
		a.release(surface)
		return Receipt{}, cancelled(err)
	case !errors.Is(err, ErrSurfaceNotReady):
		a.release(surface)
		return Receipt{}, failed(
			fmt.Sprintf("The printer did not accept %s. Check the printer and try again, or download the PDF.", d.Source.Title()),
			err,
		)
	default:
		a.releaseLater(surface)
		return Receipt{}, failed(
			fmt.Sprintf("Printing did not start after %d attempts. Print %s manually from the opened document.", attempts, d.Source.Title()),
			err,
		)
	}
}

func (a *PrintAdapter) releaseLater(s Surface) {
	if a.releaseAfter <= 0 {
		a.release(s)
		return
	}
	a.after(a.releaseAfter, func() { a.release(s) })
}

func (a *PrintAdapter) release(s Surface) {
	if err := s.Close(); err != nil {
		a.log.WithError(err).Warn("release print surface")
	}
}
