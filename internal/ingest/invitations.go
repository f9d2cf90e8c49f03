package ingest

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"cse-data/internal/domain"
	"cse-data/internal/normalize"
	"cse-data/internal/repository"
)

// invitDateAliases locate the invitation (PAP) date column.
var invitDateAliases = []string{"date pap", "date_pap", "date", "date invitation", "date d'invitation", "date réception", "date reception"}

// SourceExcel marks invitations that came in through a spreadsheet import,
// as opposed to document extraction or manual entry.
const SourceExcel = "import_excel"

// InvitationIngestor imports pre-election-agreement invitation spreadsheets.
type InvitationIngestor struct {
	repo   repository.InvitationsRepository
	logger *zap.Logger
}

func NewInvitationIngestor(repo repository.InvitationsRepository, logger *zap.Logger) *InvitationIngestor {
	return &InvitationIngestor{repo: repo, logger: logger}
}

// Ingest appends one invitation per row carrying a valid identifier AND a
// parseable invitation date; rows missing either are skipped. The whole row
// is also captured into the payload map keyed by folded header names, so
// columns we do not know today stay recoverable by Backfill.
func (ing *InvitationIngestor) Ingest(ctx context.Context, r io.Reader) (*Result, error) {
	t, err := ReadFirstSheet(r)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(t.Rows) == 0 {
		return res, nil
	}

	cSiret := t.Resolve("siret")
	cDate := t.Resolve(invitDateAliases...)

	invitations := make([]domain.Invitation, 0, len(t.Rows))
	for _, row := range t.Rows {
		siret := normalize.Siret(Cell(row, cSiret))
		if siret == "" {
			res.Skipped++
			continue
		}
		dateInvit := normalize.Date(Cell(row, cDate))
		if dateInvit == nil {
			res.Skipped++
			continue
		}

		inv := domain.Invitation{
			Siret:     siret,
			DateInvit: *dateInvit,
			Source:    SourceExcel,
			Raw:       rowPayload(t.Headers, row),
		}
		ExtractKnownFields(&inv)
		invitations = append(invitations, inv)
	}

	inserted, err := ing.repo.InsertBatch(ctx, invitations)
	if err != nil {
		return nil, fmt.Errorf("insert invitations: %w", err)
	}
	res.Inserted = inserted

	ing.logger.Info("invitation file ingested",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// rowPayload captures every non-empty cell keyed by the folded header name.
// First occurrence wins when two headers fold to the same key.
func rowPayload(headers, row []string) map[string]string {
	payload := map[string]string{}
	for i, h := range headers {
		key := normalize.FoldKey(h)
		if key == "" {
			continue
		}
		value := normalize.CollapseSpaces(Cell(row, i))
		if value == "" {
			continue
		}
		if _, exists := payload[key]; exists {
			continue
		}
		payload[key] = value
	}
	return payload
}

// Backfill re-runs the alias extraction over every stored invitation,
// filling dedicated columns from the payload where they are still empty.
// Idempotent: a second run changes nothing.
func (ing *InvitationIngestor) Backfill(ctx context.Context) (int, error) {
	invitations, err := ing.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load invitations: %w", err)
	}
	updated := 0
	for i := range invitations {
		inv := &invitations[i]
		if !ExtractKnownFields(inv) {
			continue
		}
		if err := ing.repo.UpdateExtracted(ctx, inv); err != nil {
			return updated, fmt.Errorf("backfill invitation id=%d: %w", inv.ID, err)
		}
		updated++
	}
	ing.logger.Info("invitation backfill done",
		zap.Int("scanned", len(invitations)),
		zap.Int("updated", updated),
	)
	return updated, nil
}
