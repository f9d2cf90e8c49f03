package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"cse-data/internal/domain"
)

type PostgresInvitationsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresInvitationsRepository(db *sql.DB, logger *zap.Logger) *PostgresInvitationsRepository {
	return &PostgresInvitationsRepository{db: db, logger: logger}
}

var invitationColumns = []string{
	"siret", "date_invit", "source", "raw",
	"denomination", "adresse", "code_postal", "commune",
	"activite_principale", "effectifs_label",
	"ul", "fd", "idcc", "effectif_connu",
	"date_reception", "date_election_prevue",
}

func rawJSON(raw map[string]string) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PostgresInvitationsRepository) InsertBatch(ctx context.Context, invitations []domain.Invitation) (int, error) {
	if len(invitations) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin invitation insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("invitations", invitationColumns...))
	if err != nil {
		return 0, fmt.Errorf("prepare invitation copy: %w", err)
	}

	for _, inv := range invitations {
		raw, err := rawJSON(inv.Raw)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("marshal invitation payload siret=%s: %w", inv.Siret, err)
		}
		_, err = stmt.ExecContext(ctx,
			inv.Siret, inv.DateInvit, inv.Source, raw,
			nullString(inv.Denomination), nullString(inv.Adresse), nullString(inv.CodePostal), nullString(inv.Commune),
			nullString(inv.ActivitePrincipale), nullString(inv.EffectifsLabel),
			nullString(inv.UL), nullString(inv.FD), nullString(inv.IDCC), nullInt(inv.EffectifConnu),
			nullTime(inv.DateReception), nullTime(inv.DateElectionPrevue),
		)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy invitation siret=%s: %w", inv.Siret, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush invitation copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close invitation copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit invitation insert: %w", err)
	}

	r.logger.Info("invitations inserted", zap.Int("count", len(invitations)))
	return len(invitations), nil
}

func (r *PostgresInvitationsRepository) ListAll(ctx context.Context) ([]domain.Invitation, error) {
	q := `
		SELECT
			id, siret, date_invit, COALESCE(source, ''), raw,
			denomination, adresse, code_postal, commune,
			activite_principale, effectifs_label,
			ul, fd, idcc, effectif_connu,
			date_reception, date_election_prevue
		FROM invitations
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := []domain.Invitation{}
	for rows.Next() {
		var inv domain.Invitation
		var raw []byte
		var deno, adresse, cp, commune, naf, eff, ul, fd, idcc sql.NullString
		var effectif sql.NullInt64
		var reception, election sql.NullTime
		if err := rows.Scan(
			&inv.ID, &inv.Siret, &inv.DateInvit, &inv.Source, &raw,
			&deno, &adresse, &cp, &commune,
			&naf, &eff,
			&ul, &fd, &idcc, &effectif,
			&reception, &election,
		); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		inv.DateInvit = inv.DateInvit.UTC()
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &inv.Raw); err != nil {
				r.logger.Warn("invitation payload is not valid JSON, ignored",
					zap.Int64("id", inv.ID), zap.Error(err))
			}
		}
		inv.Denomination = strPtr(deno)
		inv.Adresse = strPtr(adresse)
		inv.CodePostal = strPtr(cp)
		inv.Commune = strPtr(commune)
		inv.ActivitePrincipale = strPtr(naf)
		inv.EffectifsLabel = strPtr(eff)
		inv.UL = strPtr(ul)
		inv.FD = strPtr(fd)
		inv.IDCC = strPtr(idcc)
		inv.EffectifConnu = intPtr(effectif)
		inv.DateReception = timePtr(reception)
		inv.DateElectionPrevue = timePtr(election)
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdateExtracted rewrites the alias-extracted and enriched columns of one
// invitation. The raw payload and identity columns are left untouched.
func (r *PostgresInvitationsRepository) UpdateExtracted(ctx context.Context, inv *domain.Invitation) error {
	q := `
		UPDATE invitations SET
			denomination = $2,
			adresse = $3,
			code_postal = $4,
			commune = $5,
			activite_principale = $6,
			effectifs_label = $7,
			ul = $8,
			fd = $9,
			idcc = $10,
			effectif_connu = $11,
			date_reception = $12,
			date_election_prevue = $13
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q,
		inv.ID,
		nullString(inv.Denomination), nullString(inv.Adresse), nullString(inv.CodePostal), nullString(inv.Commune),
		nullString(inv.ActivitePrincipale), nullString(inv.EffectifsLabel),
		nullString(inv.UL), nullString(inv.FD), nullString(inv.IDCC), nullInt(inv.EffectifConnu),
		nullTime(inv.DateReception), nullTime(inv.DateElectionPrevue),
	)
	if err != nil {
		return fmt.Errorf("update invitation id=%d: %w", inv.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("invitation id=%d: %w", inv.ID, ErrNotFound)
	}
	return nil
}
