// Package preview holds the presentational state of an export panel: the page
// being looked at, the zoom factor and fullscreen, plus the sandboxed renderer.
package preview

import "errors"

// ErrNoDocument is returned by Current when there are no pages to show.
var ErrNoDocument = errors.New("no document to preview")

// Pagination tracks the current page of a fixed list of page fragments.
// Navigation past either end is a no-op.
type Pagination struct {
	pages []string
	index int
}

func NewPagination(pages []string) *Pagination {
	return &Pagination{pages: pages}
}

// Next moves forward one page and reports whether the index changed.
func (p *Pagination) Next() bool {
	if p.index >= len(p.pages)-1 {
		return false
	}
	p.index++
	return true
}

// Previous moves back one page and reports whether the index changed.
func (p *Pagination) Previous() bool {
	if p.index <= 0 {
		return false
	}
	p.index--
	return true
}

// Current returns the fragment at the current index.
func (p *Pagination) Current() (string, error) {
	if len(p.pages) == 0 {
		return "", ErrNoDocument
	}
	return p.pages[p.index], nil
}

func (p *Pagination) Index() int { return p.index }

func (p *Pagination) Count() int { return len(p.pages) }
