package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"cse-data/internal/domain"
	"cse-data/internal/repository"
)

// workbook builds an in-memory xlsx with the given rows on the first sheet.
func workbook(t *testing.T, rows [][]interface{}) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func TestReadFirstSheet_HeadersAndRows(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"  Siret ", "Raison   Sociale", "Votants"},
		{"12345678901234", "ACME", "42"},
	})

	tab, err := ReadFirstSheet(r)

	require.NoError(t, err)
	assert.Equal(t, []string{"Siret", "Raison Sociale", "Votants"}, tab.Headers)
	require.Len(t, tab.Rows, 1)
	assert.Equal(t, "ACME", Cell(tab.Rows[0], 1))
	// Out of range reads are empty, not panics.
	assert.Equal(t, "", Cell(tab.Rows[0], 9))
	assert.Equal(t, "", Cell(tab.Rows[0], -1))
}

func TestTableResolve_ExactBeatsSubstring(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"Date PV", "Date", "Nb Votants CGT"},
	})
	tab, err := ReadFirstSheet(r)
	require.NoError(t, err)

	// Exact match on "date" wins over the substring hit in column 0.
	assert.Equal(t, 1, tab.Resolve("date"))
	assert.Equal(t, 0, tab.Resolve("date pv"))
	assert.Equal(t, []int{2}, tab.ResolveAll("cgt"))
	assert.Equal(t, -1, tab.Resolve("siret"))
}

func TestTableResolveExactAndWord(t *testing.T) {
	r := workbook(t, [][]interface{}{
		{"Blancs et nuls", "UL", "Fonction", "Voix FO", "Informations"},
	})
	tab, err := ReadFirstSheet(r)
	require.NoError(t, err)

	// The exact pass never falls through to a substring hit in "nuls".
	assert.Equal(t, 1, tab.ResolveExact("ul"))
	assert.Equal(t, -1, tab.ResolveExact("fd"))

	// Word matching skips "Fonction" and "Informations".
	assert.Equal(t, []int{3}, tab.ResolveAllWord("fo"))
	assert.Empty(t, tab.ResolveAllWord("cgt"))
}

func TestPVIngest_MessyHeaders(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"N° SIRET", "Cycle", "Date PV", "Institution", "Inscrits", "Nb Votants", "Blancs et nuls", "Voix CGT", "Voix CFDT", "Raison sociale", "Code postal", "Ville"},
		{"123 456 789 01234", "cycle 4", "15/03/2023", "CSE", "1 200", "950", "12", "400", "300", "ACME SA", "75011", "Paris"},
		{"", "C4", "15/03/2023", "CSE", "10", "8", "0", "3", "2", "Sans Siret", "75011", "Paris"},
	})

	res, err := ing.Ingest(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Warnings)

	events, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "12345678901234", e.Siret)
	assert.Equal(t, domain.CycleC4, e.Cycle)
	require.NotNil(t, e.DatePV)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), *e.DatePV)
	assert.Equal(t, 1200, *e.Inscrits)
	assert.Equal(t, 950, *e.Votants)
	assert.Equal(t, 400, *e.Votes.CGT)
	assert.Equal(t, 300, *e.Votes.CFDT)
	assert.Equal(t, "ACME SA", *e.RaisonSociale)
	assert.Equal(t, "75011", *e.CP)
	assert.NotEmpty(t, e.ImportBatch)
}

func TestPVIngest_UnknownCycleKept(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Date"},
		{"11122233344455", "cycle 34", "01/02/2019"},
	})

	res, err := ing.Ingest(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	events, _ := repo.ListAll(context.Background())
	assert.Equal(t, "CYCLE 34", events[0].Cycle)
}

func TestPVIngest_PositionalDateFallback(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	// No header mentions a date; the sheet is narrower than the historical
	// position so the fallback clamps to the last column.
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Dernière colonne"},
		{"11122233344455", "C3", "2019-06-01"},
	})

	res, err := ing.Ingest(context.Background(), r)

	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "positional")
	events, _ := repo.ListAll(context.Background())
	require.NotNil(t, events[0].DatePV)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), *events[0].DatePV)
}

func TestPVIngest_DuplicateImportDoublesRows(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	rows := [][]interface{}{
		{"Siret", "Cycle", "Date"},
		{"11122233344455", "C4", "10/05/2022"},
	}

	_, err := ing.Ingest(context.Background(), workbook(t, rows))
	require.NoError(t, err)
	_, err = ing.Ingest(context.Background(), workbook(t, rows))
	require.NoError(t, err)

	events, _ := repo.ListAll(context.Background())
	// Append-only store: re-importing the same file duplicates the events.
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].ImportBatch, events[1].ImportBatch)
}

func TestPVIngest_VoteColumnsSummed(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Date", "CGT titulaires", "CGT suppléants", "SUD", "Solidaires"},
		{"11122233344455", "C4", "10/05/2022", "30", "25", "7", "3"},
	})

	_, err := ing.Ingest(context.Background(), r)
	require.NoError(t, err)

	events, _ := repo.ListAll(context.Background())
	assert.Equal(t, 55, *events[0].Votes.CGT)
	assert.Equal(t, 10, *events[0].Votes.SUD)
}

func TestPVIngest_BlancsNulsNeverFillsUnionLocale(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Date", "Votants", "Blancs et nuls"},
		{"11122233344455", "C4", "10/05/2022", "80", "12"},
	})

	_, err := ing.Ingest(context.Background(), r)
	require.NoError(t, err)

	events, _ := repo.ListAll(context.Background())
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UL)
	require.NotNil(t, events[0].BlancsNuls)
	assert.Equal(t, 12, *events[0].BlancsNuls)
}

func TestPVIngest_UnionLocaleColumn(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Date", "Blancs et nuls", "UL"},
		{"11122233344455", "C4", "10/05/2022", "3", "UL Montreuil"},
	})

	_, err := ing.Ingest(context.Background(), r)
	require.NoError(t, err)

	events, _ := repo.ListAll(context.Background())
	require.NotNil(t, events[0].UL)
	assert.Equal(t, "UL Montreuil", *events[0].UL)
}

func TestPVIngest_FOVotesIgnoreUnrelatedHeaders(t *testing.T) {
	repo := repository.NewMemoryPVEventsRepo()
	ing := NewPVIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Cycle", "Date", "Fonction", "Informations", "Voix FO"},
		{"11122233344455", "C4", "10/05/2022", "7", "9", "25"},
	})

	_, err := ing.Ingest(context.Background(), r)
	require.NoError(t, err)

	events, _ := repo.ListAll(context.Background())
	require.NotNil(t, events[0].Votes.FO)
	assert.Equal(t, 25, *events[0].Votes.FO)
}

func TestInvitationIngest_PayloadAndExtraction(t *testing.T) {
	repo := repository.NewMemoryInvitationsRepo()
	ing := NewInvitationIngestor(repo, zap.NewNop())
	r := workbook(t, [][]interface{}{
		{"Siret", "Date PAP", "Dénomination", "Code Postal", "Colonne Mystère"},
		{"123 456 789 01234", "07/01/2025", "ACME SA", "75011", "gardez-moi"},
		{"22233344455566", "pas une date", "SANSDATE", "", ""},
		{"", "07/01/2025", "SANSSIRET", "", ""},
	})

	res, err := ing.Ingest(context.Background(), r)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)

	invitations, _ := repo.ListAll(context.Background())
	require.Len(t, invitations, 1)
	inv := invitations[0]
	assert.Equal(t, "12345678901234", inv.Siret)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), inv.DateInvit)
	assert.Equal(t, SourceExcel, inv.Source)
	// Known columns land in dedicated fields, unknown ones stay in the payload.
	require.NotNil(t, inv.Denomination)
	assert.Equal(t, "ACME SA", *inv.Denomination)
	require.NotNil(t, inv.CodePostal)
	assert.Equal(t, "75011", *inv.CodePostal)
	assert.Equal(t, "gardez-moi", inv.Raw["colonne_mystere"])
}

func TestInvitationBackfill_Idempotent(t *testing.T) {
	repo := repository.NewMemoryInvitationsRepo()
	ing := NewInvitationIngestor(repo, zap.NewNop())
	// Stored before the commune alias existed: payload carries the value,
	// the dedicated column is empty.
	_, err := repo.InsertBatch(context.Background(), []domain.Invitation{{
		Siret:     "11122233344455",
		DateInvit: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Source:    SourceExcel,
		Raw:       map[string]string{"commune": "Montreuil", "idcc": "1486"},
	}})
	require.NoError(t, err)

	updated, err := ing.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	invitations, _ := repo.ListAll(context.Background())
	require.NotNil(t, invitations[0].Commune)
	assert.Equal(t, "Montreuil", *invitations[0].Commune)
	require.NotNil(t, invitations[0].IDCC)
	assert.Equal(t, "1486", *invitations[0].IDCC)

	updated, err = ing.Backfill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestExtractKnownFields_FillsOnlyEmpty(t *testing.T) {
	manual := "saisie manuelle"
	inv := domain.Invitation{
		Denomination: &manual,
		Raw: map[string]string{
			"denomination": "depuis le fichier",
			"ville":        "Lille",
		},
	}

	changed := ExtractKnownFields(&inv)

	assert.True(t, changed)
	// Manual entry is never overwritten by extraction.
	assert.Equal(t, manual, *inv.Denomination)
	require.NotNil(t, inv.Commune)
	assert.Equal(t, "Lille", *inv.Commune)
}

func BenchmarkPVIngest(b *testing.B) {
	rows := [][]interface{}{{"Siret", "Cycle", "Date", "Votants", "CGT", "CFDT"}}
	for i := 0; i < 200; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("%014d", i+1), "C4", "10/05/2022", "100", "40", "30"})
	}
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetSheetRow(sheet, cell, &row)
	}
	buf, _ := f.WriteToBuffer()
	f.Close()
	raw := buf.Bytes()
	ing := NewPVIngestor(repository.NewMemoryPVEventsRepo(), zap.NewNop())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ing.Ingest(context.Background(), bytes.NewReader(raw)); err != nil {
			b.Fatal(err)
		}
	}
}
