package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the three tables and re-add columns that older
// deployments may lack. Everything is additive, so running it on a live
// database is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pv_events (
		id            BIGSERIAL PRIMARY KEY,
		siret         VARCHAR(14) NOT NULL,
		cycle         VARCHAR(10),
		date_pv       DATE,
		institution   TEXT,
		inscrits      INTEGER,
		votants       INTEGER,
		blancs_nuls   INTEGER,
		cgt_voix      INTEGER,
		cfdt_voix     INTEGER,
		fo_voix       INTEGER,
		cftc_voix     INTEGER,
		cgc_voix      INTEGER,
		unsa_voix     INTEGER,
		sud_voix      INTEGER,
		autre_voix    INTEGER,
		idcc          VARCHAR(20),
		fd            VARCHAR(80),
		ud            VARCHAR(80),
		ul            VARCHAR(100),
		departement   VARCHAR(5),
		region        VARCHAR(100),
		raison_sociale TEXT,
		cp            VARCHAR(10),
		ville         TEXT,
		import_batch  VARCHAR(36),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_events_siret ON pv_events (siret)`,
	`CREATE INDEX IF NOT EXISTS idx_pv_events_cycle ON pv_events (cycle)`,

	`CREATE TABLE IF NOT EXISTS invitations (
		id            BIGSERIAL PRIMARY KEY,
		siret         VARCHAR(14) NOT NULL,
		date_invit    DATE NOT NULL,
		source        TEXT,
		raw           JSONB,
		denomination  TEXT,
		adresse       TEXT,
		code_postal   VARCHAR(10),
		commune       TEXT,
		activite_principale VARCHAR(10),
		effectifs_label     TEXT,
		ul            VARCHAR(100),
		fd            VARCHAR(80),
		idcc          VARCHAR(20),
		effectif_connu      INTEGER,
		date_reception      DATE,
		date_election_prevue DATE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invitations_siret ON invitations (siret)`,

	// Columns added after the first deployments.
	`ALTER TABLE invitations ADD COLUMN IF NOT EXISTS ul VARCHAR(100)`,
	`ALTER TABLE invitations ADD COLUMN IF NOT EXISTS effectif_connu INTEGER`,
	`ALTER TABLE invitations ADD COLUMN IF NOT EXISTS date_reception DATE`,
	`ALTER TABLE invitations ADD COLUMN IF NOT EXISTS date_election_prevue DATE`,
	`ALTER TABLE pv_events ADD COLUMN IF NOT EXISTS import_batch VARCHAR(36)`,

	`CREATE TABLE IF NOT EXISTS siret_summary (
		siret          VARCHAR(14) PRIMARY KEY,
		raison_sociale TEXT,
		idcc           VARCHAR(20),
		departement    VARCHAR(5),
		region         VARCHAR(100),
		ud             VARCHAR(80),
		ul             VARCHAR(100),
		cp             VARCHAR(10),
		ville          TEXT,
		date_pv_c3     DATE,
		carence_c3     BOOLEAN,
		inscrits_c3    INTEGER,
		votants_c3     INTEGER,
		cgt_voix_c3    INTEGER,
		cfdt_voix_c3   INTEGER,
		fo_voix_c3     INTEGER,
		cftc_voix_c3   INTEGER,
		cgc_voix_c3    INTEGER,
		unsa_voix_c3   INTEGER,
		sud_voix_c3    INTEGER,
		autre_voix_c3  INTEGER,
		date_pv_c4     DATE,
		carence_c4     BOOLEAN,
		inscrits_c4    INTEGER,
		votants_c4     INTEGER,
		cgt_voix_c4    INTEGER,
		cfdt_voix_c4   INTEGER,
		fo_voix_c4     INTEGER,
		cftc_voix_c4   INTEGER,
		cgc_voix_c4    INTEGER,
		unsa_voix_c4   INTEGER,
		sud_voix_c4    INTEGER,
		autre_voix_c4  INTEGER,
		statut         VARCHAR(10),
		date_pv_max    DATE,
		date_pap_c5    DATE,
		cgt_implantee  BOOLEAN
	)`,
}

// EnsureSchema creates missing tables/columns. Call once at startup, before
// any ingestion or rebuild.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
