package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"cse-data/internal/domain"
)

// DefaultBatchSize is the number of summary rows committed per transaction
// during a rebuild.
const DefaultBatchSize = 2000

type PostgresSummaryRepository struct {
	db        *sql.DB
	logger    *zap.Logger
	batchSize int
}

func NewPostgresSummaryRepository(db *sql.DB, logger *zap.Logger) *PostgresSummaryRepository {
	return &PostgresSummaryRepository{db: db, logger: logger, batchSize: DefaultBatchSize}
}

var summaryColumns = []string{
	"siret", "raison_sociale", "idcc",
	"departement", "region", "ud", "ul", "cp", "ville",
	"date_pv_c3", "carence_c3", "inscrits_c3", "votants_c3",
	"cgt_voix_c3", "cfdt_voix_c3", "fo_voix_c3", "cftc_voix_c3",
	"cgc_voix_c3", "unsa_voix_c3", "sud_voix_c3", "autre_voix_c3",
	"date_pv_c4", "carence_c4", "inscrits_c4", "votants_c4",
	"cgt_voix_c4", "cfdt_voix_c4", "fo_voix_c4", "cftc_voix_c4",
	"cgc_voix_c4", "unsa_voix_c4", "sud_voix_c4", "autre_voix_c4",
	"statut", "date_pv_max", "date_pap_c5", "cgt_implantee",
}

// ReplaceAll regenerates the summary table: delete everything, then insert
// the new rows in batches, one transaction per batch. Readers running during
// a rebuild may observe the intermediate state; callers that need an atomic
// swap must serialize access around the rebuild (see service.RebuildTracker).
func (r *PostgresSummaryRepository) ReplaceAll(ctx context.Context, rows []domain.SiretSummary) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin summary delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM siret_summary`); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit summary delete: %w", err)
	}

	inserted := 0
	for start := 0; start < len(rows); start += r.batchSize {
		end := start + r.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := r.insertBatch(ctx, rows[start:end]); err != nil {
			// A failed batch leaves the already committed ones in place.
			// Propagate so the caller sees a half-applied rebuild instead
			// of silently keeping it.
			return inserted, fmt.Errorf("summary batch %d-%d: %w", start, end, err)
		}
		inserted = end
	}

	r.logger.Info("summary table replaced", zap.Int("rows", inserted))
	return inserted, nil
}

func (r *PostgresSummaryRepository) insertBatch(ctx context.Context, rows []domain.SiretSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("siret_summary", summaryColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, s := range rows {
		_, err = stmt.ExecContext(ctx,
			s.Siret, nullString(s.RaisonSociale), nullString(s.IDCC),
			nullString(s.Departement), nullString(s.Region), nullString(s.UD), nullString(s.UL), nullString(s.CP), nullString(s.Ville),
			nullTime(s.C3.DatePV), nullBool(s.C3.Carence), nullInt(s.C3.Inscrits), nullInt(s.C3.Votants),
			nullInt(s.C3.Votes.CGT), nullInt(s.C3.Votes.CFDT), nullInt(s.C3.Votes.FO), nullInt(s.C3.Votes.CFTC),
			nullInt(s.C3.Votes.CGC), nullInt(s.C3.Votes.UNSA), nullInt(s.C3.Votes.SUD), nullInt(s.C3.Votes.Autre),
			nullTime(s.C4.DatePV), nullBool(s.C4.Carence), nullInt(s.C4.Inscrits), nullInt(s.C4.Votants),
			nullInt(s.C4.Votes.CGT), nullInt(s.C4.Votes.CFDT), nullInt(s.C4.Votes.FO), nullInt(s.C4.Votes.CFTC),
			nullInt(s.C4.Votes.CGC), nullInt(s.C4.Votes.UNSA), nullInt(s.C4.Votes.SUD), nullInt(s.C4.Votes.Autre),
			s.Statut, nullTime(s.DatePVMax), nullTime(s.DatePAPC5), s.CGTImplantee,
		)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("copy row siret=%s: %w", s.Siret, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	return tx.Commit()
}
