package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cse-data/internal/domain"
	"cse-data/internal/normalize"
	"cse-data/internal/repository"
)

// pvDateAliases are tried when no column is named exactly "date".
var pvDateAliases = []string{"date pv", "date pap", "date_pv", "date du pv", "date du pap", "date scrutin", "date_scrutin"}

// pvPositionalDateColumn is the historical fallback when no date column can
// be detected by name: column 16 of the sheet (or the last one on narrower
// files). It encodes a layout assumption from the first delivered exports
// and is kept for compatibility; every use is logged.
const pvPositionalDateColumn = 15

// PVIngestor imports election-minute spreadsheets.
type PVIngestor struct {
	repo   repository.PVEventsRepository
	logger *zap.Logger
}

func NewPVIngestor(repo repository.PVEventsRepository, logger *zap.Logger) *PVIngestor {
	return &PVIngestor{repo: repo, logger: logger}
}

// orgTokens maps each organization to the header substrings that carry its
// vote counts. Several columns may match; their parseable values are summed.
var orgTokens = map[string][]string{
	domain.OrgCGT:   {"cgt"},
	domain.OrgCFDT:  {"cfdt"},
	domain.OrgFO:    {"fo"},
	domain.OrgCFTC:  {"cftc"},
	domain.OrgCGC:   {"cgc"},
	domain.OrgUNSA:  {"unsa"},
	domain.OrgSUD:   {"sud", "solidaire"},
	domain.OrgAutre: {"autre"},
}

// Ingest reads the first sheet and appends one PV event per row carrying a
// valid identifier. Rows without one are skipped; every other field is
// best-effort and may stay nil.
func (ing *PVIngestor) Ingest(ctx context.Context, r io.Reader) (*Result, error) {
	t, err := ReadFirstSheet(r)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(t.Rows) == 0 {
		return res, nil
	}

	cSiret := t.Resolve("siret")
	cCycle := t.Resolve("cycle")
	cDate := -1
	if t.HasColumn("date") {
		cDate = t.Resolve("date")
	} else if cDate = t.Resolve(pvDateAliases...); cDate < 0 {
		cDate = pvPositionalDateColumn
		if cDate > len(t.Headers)-1 {
			cDate = len(t.Headers) - 1
		}
		warn := fmt.Sprintf("no date column detected, falling back to positional column %d (%q)", cDate, Cell(t.Headers, cDate))
		res.Warnings = append(res.Warnings, warn)
		ing.logger.Warn("pv import: positional date fallback in use",
			zap.Int("column", cDate),
			zap.String("header", Cell(t.Headers, cDate)),
		)
	}
	cInstitution := t.Resolve("institution", "type")
	cInscrits := t.Resolve("inscrit")
	cVotants := t.Resolve("votant")
	cBlancsNuls := t.Resolve("blanc", "nul")
	cIDCC := t.Resolve("idcc")
	cFD := t.Resolve("fd")
	cUD := t.Resolve("ud")
	// "ul" may only match exactly: as a substring it also hits the standard
	// "Blancs et nuls" header.
	cUL := t.Resolve("union locale", "union_locale")
	if cUL < 0 {
		cUL = t.ResolveExact("ul")
	}
	cDep := t.Resolve("départ", "depart", "département", "departement", "dep")
	cRegion := t.Resolve("région", "region")
	cRS := t.Resolve("raison sociale", "raison", "dénomination", "denomination", "entreprise")
	cCP := t.Resolve("cp", "code postal")
	cVille := t.Resolve("ville")

	orgCols := map[string][]int{}
	for org, tokens := range orgTokens {
		// "fo" only counts as a standalone word; as a substring it would
		// sum "Fonction" or "Informations" columns into FO's votes.
		if org == domain.OrgFO {
			orgCols[org] = t.ResolveAllWord(tokens...)
		} else {
			orgCols[org] = t.ResolveAll(tokens...)
		}
	}

	batch := uuid.NewString()
	events := make([]domain.PVEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		siret := normalize.Siret(Cell(row, cSiret))
		if siret == "" {
			res.Skipped++
			continue
		}
		e := domain.PVEvent{
			Siret:       siret,
			Cycle:       normalize.Cycle(Cell(row, cCycle)),
			DatePV:      normalize.Date(Cell(row, cDate)),
			Institution: Cell(row, cInstitution),
			Inscrits:    normalize.NumericInt(Cell(row, cInscrits)),
			Votants:     normalize.NumericInt(Cell(row, cVotants)),
			BlancsNuls:  normalize.NumericInt(Cell(row, cBlancsNuls)),
			Votes: domain.VoteCounts{
				CGT:   sumCells(row, orgCols[domain.OrgCGT]),
				CFDT:  sumCells(row, orgCols[domain.OrgCFDT]),
				FO:    sumCells(row, orgCols[domain.OrgFO]),
				CFTC:  sumCells(row, orgCols[domain.OrgCFTC]),
				CGC:   sumCells(row, orgCols[domain.OrgCGC]),
				UNSA:  sumCells(row, orgCols[domain.OrgUNSA]),
				SUD:   sumCells(row, orgCols[domain.OrgSUD]),
				Autre: sumCells(row, orgCols[domain.OrgAutre]),
			},
			IDCC:          cellPtr(row, cIDCC),
			FD:            fdPtr(Cell(row, cFD)),
			UD:            cellPtr(row, cUD),
			UL:            cellPtr(row, cUL),
			Departement:   cellPtr(row, cDep),
			Region:        cellPtr(row, cRegion),
			RaisonSociale: cellPtr(row, cRS),
			CP:            cellPtr(row, cCP),
			Ville:         cellPtr(row, cVille),
			ImportBatch:   batch,
		}
		events = append(events, e)
	}

	inserted, err := ing.repo.InsertBatch(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("insert pv events: %w", err)
	}
	res.Inserted = inserted

	ing.logger.Info("pv file ingested",
		zap.String("import_batch", batch),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// sumCells sums the parseable values of the given columns. Nil when none of
// them held a number.
func sumCells(row []string, cols []int) *int {
	total := 0
	has := false
	for _, c := range cols {
		if v := normalize.NumericInt(Cell(row, c)); v != nil {
			total += *v
			has = true
		}
	}
	if !has {
		return nil
	}
	return &total
}

func cellPtr(row []string, idx int) *string {
	v := Cell(row, idx)
	if v == "" {
		return nil
	}
	return &v
}

func fdPtr(raw string) *string {
	v := normalize.FDLabel(raw)
	if v == "" {
		return nil
	}
	return &v
}
