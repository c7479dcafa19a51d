// Package export turns a document.Source into a delivered PDF. It owns the
// single-flight generation job of one export panel and the three delivery
// channels: download, print and share.
package export

import (
	"errors"
	"fmt"
)

// Channel names a delivery mechanism.
type Channel string

const (
	ChannelDownload Channel = "download"
	ChannelPrint    Channel = "print"
	ChannelShare    Channel = "share"
)

// ParseChannel validates a channel name coming from a client.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelDownload, ChannelPrint, ChannelShare:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown export channel %q", s)
	}
}

// Reason classifies a non-ok Outcome.
type Reason string

const (
	ReasonBusy                Reason = "busy"
	ReasonRasterizationFailed Reason = "rasterization_failed"
	ReasonChannelUnavailable  Reason = "channel_unavailable"
	ReasonChannelFailed       Reason = "channel_failed"
	ReasonUserCancelled       Reason = "user_cancelled"
)

// Outcome is the only thing RequestExport reports. Failures never escape as
// errors or panics; the shell just shows Notification.
type Outcome struct {
	OK      bool    `json:"ok"`
	Reason  Reason  `json:"reason,omitempty"`
	Channel Channel `json:"channel"`
	Message string  `json:"message,omitempty"`
	// Note explains a fallback, e.g. a share that became a download.
	Note string `json:"note,omitempty"`
	// Location is where the document went: a file path, a share URL or a print job.
	Location string `json:"location,omitempty"`
	JobID    string `json:"jobId,omitempty"`
}

// Silent reports whether the shell should show nothing for this outcome.
func (o Outcome) Silent() bool {
	return o.Reason == ReasonUserCancelled
}

// Notification is the transient message the shell should display.
func (o Outcome) Notification() string {
	switch {
	case o.Silent():
		return ""
	case o.Note != "":
		return o.Note
	case o.Message != "":
		return o.Message
	case o.OK:
		return "Done."
	default:
		return "Export failed. Please try again."
	}
}

// Artifact is a generated PDF.
type Artifact struct {
	Filename string
	MimeType string
	Data     []byte
	Pages    int
}

// Receipt is what a channel adapter reports on delivery.
type Receipt struct {
	Location string
	Note     string
}

var (
	// ErrChannelUnavailable marks a delivery mechanism that does not exist here.
	ErrChannelUnavailable = errors.New("export channel unavailable")
	// ErrChannelFailed marks a delivery attempt that failed on an available channel.
	ErrChannelFailed = errors.New("export channel failed")
	// ErrUserCancelled marks a delivery the user backed out of.
	ErrUserCancelled = errors.New("export cancelled by user")
	// ErrRasterize wraps every generation failure.
	ErrRasterize = errors.New("export rasterization failed")
	// ErrEmptyCapture indicates the renderer produced no pixels.
	ErrEmptyCapture = errors.New("export capture is empty")
)
