package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetInvoiceDocument(ctx context.Context, id string) (InvoiceDocument, error) {
	var item InvoiceDocument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, artifact_name, canonical_markup, updated_at
		FROM invoice_documents
		WHERE id=$1
	`, id).Scan(&item.ID, &item.Title, &item.ArtifactName, &item.CanonicalMarkup, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return InvoiceDocument{}, fmt.Errorf("invoice document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return InvoiceDocument{}, fmt.Errorf("get invoice document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT markup
		FROM invoice_document_pages
		WHERE document_id=$1
		ORDER BY page_no ASC
	`, id)
	if err != nil {
		return InvoiceDocument{}, fmt.Errorf("list invoice pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var markup string
		if err := rows.Scan(&markup); err != nil {
			return InvoiceDocument{}, fmt.Errorf("scan invoice page: %w", err)
		}
		item.Pages = append(item.Pages, markup)
	}
	if err := rows.Err(); err != nil {
		return InvoiceDocument{}, fmt.Errorf("list invoice pages: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListInvoiceDocuments(ctx context.Context, limit int) ([]InvoiceSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.artifact_name, d.updated_at, COUNT(p.page_no)
		FROM invoice_documents d
		LEFT JOIN invoice_document_pages p ON p.document_id = d.id
		GROUP BY d.id
		ORDER BY d.updated_at DESC, d.id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoice documents: %w", err)
	}
	defer rows.Close()

	items := make([]InvoiceSummary, 0)
	for rows.Next() {
		var item InvoiceSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.ArtifactName, &item.UpdatedAt, &item.PageCount); err != nil {
			return nil, fmt.Errorf("scan invoice document: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
