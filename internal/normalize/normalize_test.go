package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiret(t *testing.T) {
	assert.Equal(t, "12345678901234", Siret("12 34 56 78 90 12 34"))
	assert.Equal(t, "12345678901234", Siret("123-456-789/01234"))
	assert.Equal(t, "", Siret(""))
	assert.Equal(t, "", Siret("SIRET inconnu"))

	// Leading zeros are stripped. Known quirk: a legitimate identifier
	// starting with zero is shortened, and stored data depends on it.
	assert.Equal(t, "123", Siret("0000123"))
	assert.Equal(t, "", Siret("0000"))
}

func TestDate_DayFirst(t *testing.T) {
	d := Date("03/04/2021")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2021, 4, 3, 0, 0, 0, 0, time.UTC), *d)

	d = Date("31/12/2020")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), *d)

	d = Date("2019-06-01")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), *d)
}

func TestDate_FallbackAndFailures(t *testing.T) {
	// Month-first only parses when the day-first attempt is impossible.
	d := Date("12/25/2019")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2019, 12, 25, 0, 0, 0, 0, time.UTC), *d)

	assert.Nil(t, Date(""))
	assert.Nil(t, Date("   "))
	assert.Nil(t, Date("NaN"))
	assert.Nil(t, Date("pas de date"))
	assert.Nil(t, Date("32/13/2020"))
}

func TestInt(t *testing.T) {
	cases := map[string]int{
		"42":     42,
		" 42 ":   42,
		"42,7":   42,
		"42.9":   42,
		"-3":     -3,
		"1200.0": 1200,
	}
	for in, want := range cases {
		got := Int(in)
		require.NotNil(t, got, "input %q", in)
		assert.Equal(t, want, *got, "input %q", in)
	}
	assert.Nil(t, Int(""))
	assert.Nil(t, Int("abc"))
	assert.Nil(t, Int("12a"))
}

func TestNumeric_ThousandSeparators(t *testing.T) {
	cases := map[string]float64{
		"1 234":        1234,
		"1 234":   1234, // non-breaking space
		"1 234":   1234, // narrow non-breaking space
		"1 234,56":     1234.56,
		"12%":          12,
		"  3 141 592 ": 3141592,
		"-42":          -42,
	}
	for in, want := range cases {
		got := Numeric(in)
		require.NotNil(t, got, "input %q", in)
		assert.InDelta(t, want, *got, 1e-9, "input %q", in)
	}
	assert.Nil(t, Numeric(""))
	assert.Nil(t, Numeric("n/a"))
	assert.Nil(t, Numeric("-"))
}

func TestNumericInt(t *testing.T) {
	got := NumericInt("1 234,9")
	require.NotNil(t, got)
	assert.Equal(t, 1234, *got)
	assert.Nil(t, NumericInt("aucun"))
}

func TestCycle(t *testing.T) {
	assert.Equal(t, "C3", Cycle("Cycle 3"))
	assert.Equal(t, "C3", Cycle("c3"))
	assert.Equal(t, "C3", Cycle("CYCLE C3 (2017-2020)"))
	assert.Equal(t, "C4", Cycle("c4"))
	assert.Equal(t, "C4", Cycle("cycle 4"))
	// "34" is not a whole-token 3 or 4.
	assert.Equal(t, "CYCLE 34", Cycle("cycle 34"))
	assert.Equal(t, "INCONNU", Cycle("inconnu"))
	// Empty input policy: empty stays empty, it is not nulled.
	assert.Equal(t, "", Cycle(""))
	assert.Equal(t, "", Cycle("   "))
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, "date_de_reception", FoldKey("Date de réception"))
	assert.Equal(t, "raison_sociale", FoldKey("  Raison   Sociale "))
	assert.Equal(t, "code_postal", FoldKey("Code postal"))
	assert.Equal(t, "federation", FoldKey("Fédération"))
	assert.Equal(t, "effectif_2024", FoldKey("Effectif (2024)"))
	assert.Equal(t, "", FoldKey("---"))
}

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "Federation generale", StripAccents("Fédération générale"))
	assert.Equal(t, "deja la", StripAccents("déjà là"))
}

func TestFDLabel(t *testing.T) {
	assert.Equal(t, "FD Métallurgie", FDLabel("FTM"))
	assert.Equal(t, "FD Métallurgie", FDLabel("métaux"))
	assert.Equal(t, "FD Agroalimentaire", FDLabel("fnaf"))
	assert.Equal(t, "FD Commerce et Services", FDLabel("Commerce / Services"))
	// Unknown labels pass through trimmed.
	assert.Equal(t, "FD Inexistante", FDLabel("  FD Inexistante "))
	assert.Equal(t, "", FDLabel(""))
}

func TestReloadFDAliases(t *testing.T) {
	ReloadFDAliases()
	assert.Equal(t, "FD Chimie", FDLabel("FNIC"))
}
