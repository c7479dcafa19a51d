package store

import (
	"time"

	"ledgerdesk/api/internal/document"
)

// InvoiceDocument is an invoice rendered upstream into printable markup.
type InvoiceDocument struct {
	ID              string
	Title           string
	ArtifactName    string
	CanonicalMarkup string
	Pages           []string
	UpdatedAt       time.Time
}

// InvoiceSummary is the listing view of an InvoiceDocument.
type InvoiceSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ArtifactName string    `json:"artifactName"`
	PageCount    int       `json:"pageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Source converts the row into an immutable document source. Stored artifact
// names are sanitized; an empty one falls back to the invoice id.
func (d InvoiceDocument) Source() (document.Source, error) {
	name := d.ArtifactName
	if name == "" {
		name = d.ID
	}
	return document.New(document.Spec{
		Pages:           d.Pages,
		CanonicalMarkup: d.CanonicalMarkup,
		ArtifactName:    document.SanitizeName(name),
		Title:           d.Title,
	})
}
