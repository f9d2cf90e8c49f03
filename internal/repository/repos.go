// Package repository persists PV events, invitations and the derived
// per-SIRET summary. Event tables are append-only; the summary table is
// replaced wholesale on every rebuild.
package repository

import (
	"context"

	"cse-data/internal/domain"
)

// PVEventsRepository stores raw election-minute events.
type PVEventsRepository interface {
	// InsertBatch appends events and returns how many were written.
	// No deduplication happens here: importing the same file twice
	// doubles the row count.
	InsertBatch(ctx context.Context, events []domain.PVEvent) (int, error)
	ListAll(ctx context.Context) ([]domain.PVEvent, error)
}

// InvitationsRepository stores pre-election-agreement invitations.
type InvitationsRepository interface {
	InsertBatch(ctx context.Context, invitations []domain.Invitation) (int, error)
	ListAll(ctx context.Context) ([]domain.Invitation, error)
	// UpdateExtracted rewrites the alias-extracted / enriched columns of one
	// invitation. Used by the payload backfill pass and Sirene enrichment.
	UpdateExtracted(ctx context.Context, inv *domain.Invitation) error
}

// SummaryRepository owns the siret_summary table.
type SummaryRepository interface {
	// ReplaceAll deletes every summary row then bulk-inserts the given set
	// in fixed-size batches, one transaction per batch. Returns the number
	// of rows inserted.
	ReplaceAll(ctx context.Context, rows []domain.SiretSummary) (int, error)
}
