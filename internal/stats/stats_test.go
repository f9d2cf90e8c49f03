package stats

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cse-data/internal/store"
)

func expectCompute(mock sqlmock.Sqlmock) {
	scalars := []struct {
		pattern string
		value   int
	}{
		{`SELECT COUNT\(\*\) FROM pv_events`, 1000},
		{`SELECT COUNT\(\*\) FROM invitations`, 200},
		{`SELECT COUNT\(\*\) FROM siret_summary`, 150},
		{`SELECT COUNT\(DISTINCT siret\) FROM pv_events`, 140},
		{`SELECT COUNT\(DISTINCT siret\) FROM invitations`, 180},
		{`UNION`, 300},
		{`date_pv_c3 IS NOT NULL`, 20},
		{`date_pv_c4 IS NOT NULL`, 30},
		{`JOIN siret_summary s ON s.siret = i.siret`, 40},
		{`carence_c4 = TRUE`, 12},
		{`cgt_implantee = TRUE`, 55},
	}
	for _, s := range scalars {
		mock.ExpectQuery(s.pattern).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(s.value))
	}
	mock.ExpectQuery(`GROUP BY statut`).
		WillReturnRows(sqlmock.NewRows([]string{"statut", "count"}).
			AddRow("C3+C4", 90).
			AddRow("C4", 40).
			AddRow("C3", 20))
}

func TestGlobal_ComputesAndCaches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	kv := store.NewMemoryKV()
	svc := NewService(db, kv, time.Minute, zap.NewNop())

	expectCompute(mock)

	g, err := svc.Global(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 1000, g.PVEvents)
	assert.Equal(t, 300, g.DistinctSiretsAll)
	assert.Equal(t, 40, g.InvitMatchedAny)
	assert.Equal(t, 90, g.StatutCounts["C3+C4"])
	assert.False(t, g.ComputedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())

	// Second call hits the cache, no further queries expected.
	again, err := svc.Global(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, g.PVEvents, again.PVEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGlobal_ForceBypassesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "cse:stats:global", `{"pv_events":1}`, 0))
	svc := NewService(db, kv, time.Minute, zap.NewNop())

	expectCompute(mock)

	g, err := svc.Global(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 1000, g.PVEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGlobal_BadCacheEntryRecomputes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "cse:stats:global", "not json", 0))
	svc := NewService(db, kv, time.Minute, zap.NewNop())

	expectCompute(mock)

	g, err := svc.Global(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 200, g.Invitations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate_DropsCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	kv := store.NewMemoryKV()
	svc := NewService(db, kv, time.Minute, zap.NewNop())

	expectCompute(mock)
	_, err = svc.Global(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background()))

	_, err = kv.Get(context.Background(), "cse:stats:global")
	assert.Equal(t, store.ErrMiss, err)
}
