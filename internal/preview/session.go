package preview

import "ledgerdesk/api/internal/document"

// State is a snapshot of a Session suitable for JSON responses.
type State struct {
	PageIndex  int     `json:"pageIndex"`
	PageCount  int     `json:"pageCount"`
	Zoom       float64 `json:"zoom"`
	Fullscreen bool    `json:"fullscreen"`
	HasPages   bool    `json:"hasPages"`
}

// Session is the per-panel preview state. It is never persisted and has no
// effect on exports.
type Session struct {
	Pagination *Pagination
	Zoom       *Zoom
	fullscreen bool
}

// NewSession starts a session on src with default zoom and the first page.
func NewSession(src document.Source) *Session {
	return &Session{
		Pagination: NewPagination(src.Pages()),
		Zoom:       NewZoom(),
	}
}

// ToggleFullscreen flips fullscreen and returns the new value.
func (s *Session) ToggleFullscreen() bool {
	s.fullscreen = !s.fullscreen
	return s.fullscreen
}

func (s *Session) Fullscreen() bool { return s.fullscreen }

func (s *Session) State() State {
	return State{
		PageIndex:  s.Pagination.Index(),
		PageCount:  s.Pagination.Count(),
		Zoom:       s.Zoom.Value(),
		Fullscreen: s.fullscreen,
		HasPages:   s.Pagination.Count() > 0,
	}
}
