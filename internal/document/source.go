// Package document describes the already-rendered invoice documents handed to the
// export pipeline by the invoice feature.
package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySource indicates there is no canonical markup to export.
	ErrEmptySource = errors.New("document source is empty")
	// ErrMissingArtifactName indicates canonical markup without a file base name.
	ErrMissingArtifactName = errors.New("document artifact name missing")
	// ErrUnsafeArtifactName indicates an artifact name that is not filesystem-safe.
	ErrUnsafeArtifactName = errors.New("document artifact name is not filesystem-safe")
)

// Source is an immutable description of one document to preview and export.
// Pages are split for on-screen preview; CanonicalMarkup is the full print-ready
// document used for printing and rasterization.
type Source struct {
	pages           []string
	canonicalMarkup string
	artifactName    string
	title           string
}

// Spec is the wire form of a Source as supplied by collaborators.
type Spec struct {
	Pages           []string `json:"pages"`
	CanonicalMarkup string   `json:"canonicalMarkup"`
	ArtifactName    string   `json:"artifactName"`
	Title           string   `json:"title,omitempty"`
}

// New validates spec and freezes it into a Source.
func New(spec Spec) (Source, error) {
	name := strings.TrimSpace(spec.ArtifactName)
	if name == "" && strings.TrimSpace(spec.CanonicalMarkup) != "" {
		return Source{}, ErrMissingArtifactName
	}
	if name != "" && SanitizeName(name) != name {
		return Source{}, fmt.Errorf("%w: %q", ErrUnsafeArtifactName, name)
	}
	pages := make([]string, len(spec.Pages))
	copy(pages, spec.Pages)
	return Source{
		pages:           pages,
		canonicalMarkup: spec.CanonicalMarkup,
		artifactName:    name,
		title:           strings.TrimSpace(spec.Title),
	}, nil
}

// PageCount returns the number of preview pages.
func (s Source) PageCount() int { return len(s.pages) }

// Page returns the preview fragment at index.
func (s Source) Page(index int) (string, bool) {
	if index < 0 || index >= len(s.pages) {
		return "", false
	}
	return s.pages[index], true
}

// Pages returns a copy of the preview fragments.
func (s Source) Pages() []string {
	out := make([]string, len(s.pages))
	copy(out, s.pages)
	return out
}

func (s Source) CanonicalMarkup() string { return s.canonicalMarkup }

func (s Source) ArtifactName() string { return s.artifactName }

// Title falls back to the artifact name when no display label was given.
func (s Source) Title() string {
	if s.title != "" {
		return s.title
	}
	return s.artifactName
}

// IsEmpty reports whether there is nothing to export.
func (s Source) IsEmpty() bool {
	return strings.TrimSpace(s.canonicalMarkup) == ""
}

// Filename is the user-visible file name of the exported artifact.
func (s Source) Filename() string {
	return s.artifactName + ".pdf"
}

// Spec returns the wire form of s.
func (s Source) Spec() Spec {
	return Spec{
		Pages:           s.Pages(),
		CanonicalMarkup: s.canonicalMarkup,
		ArtifactName:    s.artifactName,
		Title:           s.title,
	}
}

// SanitizeName turns a free-form label into a filesystem-safe file base name.
func SanitizeName(label string) string {
	var result strings.Builder
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result.WriteRune(r)
		case r == ' ':
			result.WriteRune('-')
		case r == '-', r == '_', r == '.':
			result.WriteRune(r)
		}
	}

	name := result.String()
	if len(name) > 80 {
		name = name[:80]
	}
	name = strings.Trim(name, ".")
	if name == "" {
		name = "document"
	}
	return name
}
