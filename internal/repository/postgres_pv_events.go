package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"cse-data/internal/domain"
)

type PostgresPVEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresPVEventsRepository(db *sql.DB, logger *zap.Logger) *PostgresPVEventsRepository {
	return &PostgresPVEventsRepository{db: db, logger: logger}
}

var pvEventColumns = []string{
	"siret", "cycle", "date_pv", "institution",
	"inscrits", "votants", "blancs_nuls",
	"cgt_voix", "cfdt_voix", "fo_voix", "cftc_voix",
	"cgc_voix", "unsa_voix", "sud_voix", "autre_voix",
	"idcc", "fd", "ud", "ul", "departement", "region",
	"raison_sociale", "cp", "ville", "import_batch",
}

// InsertBatch appends the events with COPY, inside one transaction.
// Re-importing a file inserts every row again; deduplication is the summary
// builder's job, not the store's.
func (r *PostgresPVEventsRepository) InsertBatch(ctx context.Context, events []domain.PVEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pv insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("pv_events", pvEventColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare pv copy: %w", err)
	}

	for _, e := range events {
		_, err = stmt.ExecContext(ctx,
			e.Siret, e.Cycle, nullTime(e.DatePV), e.Institution,
			nullInt(e.Inscrits), nullInt(e.Votants), nullInt(e.BlancsNuls),
			nullInt(e.Votes.CGT), nullInt(e.Votes.CFDT), nullInt(e.Votes.FO), nullInt(e.Votes.CFTC),
			nullInt(e.Votes.CGC), nullInt(e.Votes.UNSA), nullInt(e.Votes.SUD), nullInt(e.Votes.Autre),
			nullString(e.IDCC), nullString(e.FD), nullString(e.UD), nullString(e.UL), nullString(e.Departement), nullString(e.Region),
			nullString(e.RaisonSociale), nullString(e.CP), nullString(e.Ville), e.ImportBatch,
		)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy pv event siret=%s: %w", e.Siret, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush pv copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close pv copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit pv insert: %w", err)
	}

	r.logger.Info("pv events inserted",
		zap.Int("count", len(events)),
		zap.String("import_batch", events[0].ImportBatch),
	)
	return len(events), nil
}

func (r *PostgresPVEventsRepository) ListAll(ctx context.Context) ([]domain.PVEvent, error) {
	q := `
		SELECT
			id, siret, COALESCE(cycle, ''), date_pv, COALESCE(institution, ''),
			inscrits, votants, blancs_nuls,
			cgt_voix, cfdt_voix, fo_voix, cftc_voix,
			cgc_voix, unsa_voix, sud_voix, autre_voix,
			idcc, fd, ud, ul, departement, region,
			raison_sociale, cp, ville
		FROM pv_events
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list pv events: %w", err)
	}
	defer rows.Close()

	out := []domain.PVEvent{}
	for rows.Next() {
		var e domain.PVEvent
		var datePV sql.NullTime
		var inscrits, votants, bn sql.NullInt64
		var cgt, cfdt, fo, cftc, cgc, unsa, sud, autre sql.NullInt64
		var idcc, fd, ud, ul, dep, region, rs, cp, ville sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Siret, &e.Cycle, &datePV, &e.Institution,
			&inscrits, &votants, &bn,
			&cgt, &cfdt, &fo, &cftc, &cgc, &unsa, &sud, &autre,
			&idcc, &fd, &ud, &ul, &dep, &region, &rs, &cp, &ville,
		); err != nil {
			return nil, fmt.Errorf("scan pv event: %w", err)
		}
		e.DatePV = timePtr(datePV)
		e.Inscrits = intPtr(inscrits)
		e.Votants = intPtr(votants)
		e.BlancsNuls = intPtr(bn)
		e.Votes = domain.VoteCounts{
			CGT: intPtr(cgt), CFDT: intPtr(cfdt), FO: intPtr(fo), CFTC: intPtr(cftc),
			CGC: intPtr(cgc), UNSA: intPtr(unsa), SUD: intPtr(sud), Autre: intPtr(autre),
		}
		e.IDCC = strPtr(idcc)
		e.FD = strPtr(fd)
		e.UD = strPtr(ud)
		e.UL = strPtr(ul)
		e.Departement = strPtr(dep)
		e.Region = strPtr(region)
		e.RaisonSociale = strPtr(rs)
		e.CP = strPtr(cp)
		e.Ville = strPtr(ville)
		out = append(out, e)
	}
	return out, rows.Err()
}
