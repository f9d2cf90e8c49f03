package domain

import "time"

// Cycle labels as stored on PV events after normalization.
const (
	CycleC3 = "C3"
	CycleC4 = "C4"
)

// Statut values of a summary row, derived from which cycles carry a ballot.
const (
	StatutC3   = "C3"
	StatutC4   = "C4"
	StatutC3C4 = "C3+C4"
	StatutNone = "None"
)

// Organization labels used for per-organization vote columns.
const (
	OrgCGT   = "CGT"
	OrgCFDT  = "CFDT"
	OrgFO    = "FO"
	OrgCFTC  = "CFTC"
	OrgCGC   = "CGC"
	OrgUNSA  = "UNSA"
	OrgSUD   = "SUD"
	OrgAutre = "AUTRE"
)

// Organizations lists every tracked organization, in the column order of the
// source spreadsheets.
var Organizations = []string{OrgCGT, OrgCFDT, OrgFO, OrgCFTC, OrgCGC, OrgUNSA, OrgSUD, OrgAutre}

// VoteCounts holds one ballot's per-organization vote tally. A nil entry
// means the column could not be resolved or parsed for that row.
type VoteCounts struct {
	CGT   *int
	CFDT  *int
	FO    *int
	CFTC  *int
	CGC   *int
	UNSA  *int
	SUD   *int
	Autre *int
}

// Get returns the count for an organization label, nil when absent.
func (v VoteCounts) Get(org string) *int {
	switch org {
	case OrgCGT:
		return v.CGT
	case OrgCFDT:
		return v.CFDT
	case OrgFO:
		return v.FO
	case OrgCFTC:
		return v.CFTC
	case OrgCGC:
		return v.CGC
	case OrgUNSA:
		return v.UNSA
	case OrgSUD:
		return v.SUD
	case OrgAutre:
		return v.Autre
	}
	return nil
}

// PVEvent is one real ballot result (procès-verbal) for one establishment in
// one electoral cycle. Events are append-only: re-importing a file creates
// duplicate rows, deduplication happens at summary-build time only.
type PVEvent struct {
	ID          int64
	Siret       string
	Cycle       string
	DatePV      *time.Time
	Institution string // free text; a "carence" marker means a no-candidate ballot
	Inscrits    *int
	Votants     *int
	BlancsNuls  *int
	Votes       VoteCounts

	IDCC          *string
	FD            *string
	UD            *string
	UL            *string
	Departement   *string
	Region        *string
	RaisonSociale *string
	CP            *string
	Ville         *string

	ImportBatch string
	CreatedAt   time.Time
}

// Invitation is one record of an establishment invited to negotiate a
// pre-election agreement (cycle 5). Raw captures every non-empty cell of the
// source row keyed by its folded column name, so fields absent from the
// dedicated columns stay recoverable by the backfill pass.
type Invitation struct {
	ID        int64
	Siret     string
	DateInvit time.Time
	Source    string
	Raw       map[string]string

	// Company-registry enrichment (Sirene).
	Denomination       *string
	Adresse            *string
	CodePostal         *string
	Commune            *string
	ActivitePrincipale *string
	EffectifsLabel     *string

	// Manually entered or alias-extracted fields.
	UL                 *string
	FD                 *string
	IDCC               *string
	EffectifConnu      *int
	DateReception      *time.Time
	DateElectionPrevue *time.Time

	CreatedAt time.Time
}

// CycleSummary is the per-cycle slice of a summary row: the latest in-window
// ballot for one establishment in one cycle.
type CycleSummary struct {
	DatePV   *time.Time
	Carence  *bool
	Inscrits *int
	Votants  *int
	Votes    VoteCounts
}

// SiretSummary is the reconciled one-row-per-establishment view consumed by
// dashboards. It has no identity across rebuilds: the whole table is dropped
// and regenerated every time.
type SiretSummary struct {
	Siret         string
	RaisonSociale *string
	IDCC          *string
	Departement   *string
	Region        *string
	UD            *string
	UL            *string
	CP            *string
	Ville         *string

	C3 CycleSummary
	C4 CycleSummary

	Statut       string
	DatePVMax    *time.Time
	DatePAPC5    *time.Time
	CGTImplantee bool
}
