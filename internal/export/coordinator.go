package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
)

// Rasterizer converts a document into a PDF artifact. Output must depend only
// on the canonical markup, never on preview state.
type Rasterizer interface {
	Rasterize(ctx context.Context, src document.Source) (*Artifact, error)
}

// Delivery is the input handed to an Adapter. Artifact is nil for adapters
// that do not need one.
type Delivery struct {
	Source   document.Source
	Artifact *Artifact
}

// Adapter delivers a document through one channel. Errors are classified with
// ErrChannelUnavailable, ErrChannelFailed or ErrUserCancelled.
type Adapter interface {
	Channel() Channel
	NeedsArtifact() bool
	Deliver(ctx context.Context, d Delivery) (Receipt, error)
}

// Coordinator owns the export job of one panel. At most one job is generating
// at a time; extra requests are rejected with ReasonBusy rather than queued.
type Coordinator struct {
	rasterizer Rasterizer
	adapters   map[Channel]Adapter
	log        logrus.FieldLogger
	now        func() time.Time

	mu     sync.Mutex
	source document.Source
	job    *Job
	closed bool
}

func NewCoordinator(rasterizer Rasterizer, log logrus.FieldLogger, adapters ...Adapter) *Coordinator {
	c := &Coordinator{
		rasterizer: rasterizer,
		adapters:   make(map[Channel]Adapter, len(adapters)),
		log:        log,
		now:        time.Now,
		job:        &Job{Status: StatusIdle},
	}
	for _, a := range adapters {
		c.adapters[a.Channel()] = a
	}
	return c
}

// Init replaces the document and resets the job to Idle. A generation still in
// flight for the previous document is aborted and its result discarded.
func (c *Coordinator) Init(src document.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discardLocked()
	c.source = src
	c.job = &Job{Status: StatusIdle}
	c.closed = false
}

// Close discards all state. Requests still running resolve as cancelled.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discardLocked()
	c.job = &Job{Status: StatusIdle}
	c.closed = true
}

func (c *Coordinator) discardLocked() {
	if c.job != nil && c.job.cancel != nil {
		c.job.cancel()
		c.job.cancel = nil
	}
}

// Source returns the current document.
func (c *Coordinator) Source() document.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Job returns a copy of the current job.
func (c *Coordinator) Job() JobSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.snapshot()
}

// Artifact returns the artifact of the current job when it is Ready.
func (c *Coordinator) Artifact() (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.Status != StatusReady || c.job.Artifact == nil {
		return nil, false
	}
	return c.job.Artifact, true
}

// RequestExport generates a fresh artifact (unless the channel works from
// markup) and delivers it through channel. It never returns an error; every
// failure is folded into the Outcome.
func (c *Coordinator) RequestExport(ctx context.Context, channel Channel) Outcome {
	adapter, ok := c.adapters[channel]
	if !ok {
		return Outcome{
			Channel: channel,
			Reason:  ReasonChannelUnavailable,
			Message: fmt.Sprintf("Export via %s is not available here.", channel),
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{Channel: channel, Reason: ReasonUserCancelled, Message: "The export panel was closed."}
	}
	if c.job.Status == StatusGenerating {
		jobID := c.job.ID
		c.mu.Unlock()
		return Outcome{
			Channel: channel,
			Reason:  ReasonBusy,
			Message: "An export is already being generated. Please wait.",
			JobID:   jobID,
		}
	}
	src := c.source
	if !adapter.NeedsArtifact() {
		c.mu.Unlock()
		return c.deliver(ctx, adapter, Delivery{Source: src}, "")
	}

	genCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusGenerating,
		Channel:   channel,
		StartedAt: c.now(),
		cancel:    cancel,
	}
	c.job = job
	c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{"job_id": job.ID, "channel": channel, "artifact": src.Filename()})
	log.Info("export generating")

	artifact, err := c.generate(genCtx, src)
	cancel()

	c.mu.Lock()
	current := c.job == job
	job.cancel = nil
	job.CompletedAt = c.now()
	if err != nil {
		job.Status = StatusFailed
		job.Err = err
	} else {
		job.Status = StatusReady
		job.Artifact = artifact
	}
	c.mu.Unlock()

	if !current {
		log.Info("export discarded: panel closed or document replaced")
		return Outcome{Channel: channel, Reason: ReasonUserCancelled, JobID: job.ID, Message: "The export was discarded."}
	}
	if err != nil {
		if isCancellation(ctx, err) {
			log.WithError(err).Info("export abandoned by caller")
			return Outcome{Channel: channel, Reason: ReasonUserCancelled, JobID: job.ID}
		}
		log.WithError(err).Warn("export generation failed")
		return Outcome{
			Channel: channel,
			Reason:  ReasonRasterizationFailed,
			JobID:   job.ID,
			Message: fmt.Sprintf("Could not generate %s. Please try again.", src.Filename()),
		}
	}

	log.WithField("pages", artifact.Pages).Info("export ready")
	return c.deliver(ctx, adapter, Delivery{Source: src, Artifact: artifact}, job.ID)
}

func (c *Coordinator) generate(ctx context.Context, src document.Source) (artifact *Artifact, err error) {
	if src.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, document.ErrEmptySource)
	}

	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = fmt.Errorf("%w: rasterizer panic: %v", ErrRasterize, r)
		}
	}()

	artifact, err = c.rasterizer.Rasterize(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, err)
	}
	if artifact == nil || len(artifact.Data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrRasterize, ErrEmptyCapture)
	}
	return artifact, nil
}

func (c *Coordinator) deliver(ctx context.Context, adapter Adapter, d Delivery, jobID string) Outcome {
	receipt, err := safeDeliver(ctx, adapter, d)

	out := Outcome{
		Channel:  adapter.Channel(),
		JobID:    jobID,
		Location: receipt.Location,
		Note:     receipt.Note,
		Message:  userMessage(err),
	}
	switch {
	case err == nil:
		out.OK = true
		if out.Message == "" {
			out.Message = successMessage(adapter.Channel(), d.Source)
		}
	case errors.Is(err, ErrUserCancelled):
		out.Reason = ReasonUserCancelled
	case errors.Is(err, ErrChannelUnavailable):
		out.Reason = ReasonChannelUnavailable
	default:
		out.Reason = ReasonChannelFailed
		if out.Message == "" {
			out.Message = fmt.Sprintf("Could not %s %s. Please try again.", verb(adapter.Channel()), d.Source.Filename())
		}
	}

	entry := c.log.WithFields(logrus.Fields{
		"job_id":  jobID,
		"channel": out.Channel,
		"ok":      out.OK,
		"reason":  out.Reason,
	})
	if err != nil && !out.Silent() {
		entry.WithError(err).Warn("export delivery failed")
	} else {
		entry.Info("export delivered")
	}
	return out
}

func safeDeliver(ctx context.Context, adapter Adapter, d Delivery) (receipt Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			receipt = Receipt{}
			err = fmt.Errorf("%w: %s adapter panic: %v", ErrChannelFailed, adapter.Channel(), r)
		}
	}()
	if adapter.NeedsArtifact() && d.Artifact == nil {
		return Receipt{}, fmt.Errorf("%w: no artifact", ErrChannelFailed)
	}
	return adapter.Deliver(ctx, d)
}

func successMessage(channel Channel, src document.Source) string {
	switch channel {
	case ChannelDownload:
		return fmt.Sprintf("Saved %s.", src.Filename())
	case ChannelPrint:
		return fmt.Sprintf("Sent %s to the printer.", src.Title())
	case ChannelShare:
		return fmt.Sprintf("Shared %s.", src.Filename())
	default:
		return "Done."
	}
}

func verb(channel Channel) string {
	switch channel {
	case ChannelDownload:
		return "download"
	case ChannelPrint:
		return "print"
	case ChannelShare:
		return "share"
	default:
		return "export"
	}
}
