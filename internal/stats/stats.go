// Package stats computes the dashboard counters over the three tables.
// Everything is recomputed with plain aggregate queries and cached as one
// JSON blob; the tables only change on import or rebuild so a short TTL is
// plenty.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cse-data/internal/store"
)

const cacheKey = "cse:stats:global"

// GlobalStats mirrors what the dashboard shows on its landing page.
type GlobalStats struct {
	PVEvents            int `json:"pv_events"`
	Invitations         int `json:"invitations"`
	SummaryRows         int `json:"summary_rows"`
	DistinctSiretsPV    int `json:"distinct_sirets_pv"`
	DistinctSiretsInvit int `json:"distinct_sirets_invit"`
	DistinctSiretsAll   int `json:"distinct_sirets_all"`

	StatutCounts map[string]int `json:"statut_counts"`

	// Invitation identifiers that also have a ballot history.
	InvitMatchedC3  int `json:"invit_matched_c3"`
	InvitMatchedC4  int `json:"invit_matched_c4"`
	InvitMatchedAny int `json:"invit_matched_any"`

	CarenceC4    int `json:"carence_c4"`
	CGTImplantee int `json:"cgt_implantee"`

	ComputedAt time.Time `json:"computed_at"`
}

type Service struct {
	db     *sql.DB
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(db *sql.DB, kv store.KV, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{db: db, kv: kv, ttl: ttl, logger: logger}
}

// Global returns the cached statistics, recomputing on miss or when force
// is set. A cache backend error only costs the caching, never the result.
func (s *Service) Global(ctx context.Context, force bool) (*GlobalStats, error) {
	if !force {
		if raw, err := s.kv.Get(ctx, cacheKey); err == nil {
			var cached GlobalStats
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			s.logger.Warn("stats cache held invalid JSON, recomputing")
		} else if err != store.ErrMiss {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	g, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(g); err == nil {
		if err := s.kv.Set(ctx, cacheKey, string(raw), s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return g, nil
}

// Invalidate drops the cached blob. Called after imports and rebuilds.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.kv.Delete(ctx, cacheKey)
}

var scalarQueries = []struct {
	name  string
	query string
	set   func(*GlobalStats, int)
}{
	{"pv_events", `SELECT COUNT(*) FROM pv_events`,
		func(g *GlobalStats, v int) { g.PVEvents = v }},
	{"invitations", `SELECT COUNT(*) FROM invitations`,
		func(g *GlobalStats, v int) { g.Invitations = v }},
	{"summary_rows", `SELECT COUNT(*) FROM siret_summary`,
		func(g *GlobalStats, v int) { g.SummaryRows = v }},
	{"distinct_sirets_pv", `SELECT COUNT(DISTINCT siret) FROM pv_events`,
		func(g *GlobalStats, v int) { g.DistinctSiretsPV = v }},
	{"distinct_sirets_invit", `SELECT COUNT(DISTINCT siret) FROM invitations`,
		func(g *GlobalStats, v int) { g.DistinctSiretsInvit = v }},
	{"distinct_sirets_all", `
		SELECT COUNT(*) FROM (
			SELECT siret FROM pv_events
			UNION
			SELECT siret FROM invitations
		) u`,
		func(g *GlobalStats, v int) { g.DistinctSiretsAll = v }},
	{"invit_matched_c3", `
		SELECT COUNT(DISTINCT i.siret)
		FROM invitations i
		JOIN siret_summary s ON s.siret = i.siret
		WHERE s.date_pv_c3 IS NOT NULL`,
		func(g *GlobalStats, v int) { g.InvitMatchedC3 = v }},
	{"invit_matched_c4", `
		SELECT COUNT(DISTINCT i.siret)
		FROM invitations i
		JOIN siret_summary s ON s.siret = i.siret
		WHERE s.date_pv_c4 IS NOT NULL`,
		func(g *GlobalStats, v int) { g.InvitMatchedC4 = v }},
	{"invit_matched_any", `
		SELECT COUNT(DISTINCT i.siret)
		FROM invitations i
		JOIN siret_summary s ON s.siret = i.siret`,
		func(g *GlobalStats, v int) { g.InvitMatchedAny = v }},
	{"carence_c4", `SELECT COUNT(*) FROM siret_summary WHERE carence_c4 = TRUE`,
		func(g *GlobalStats, v int) { g.CarenceC4 = v }},
	{"cgt_implantee", `SELECT COUNT(*) FROM siret_summary WHERE cgt_implantee = TRUE`,
		func(g *GlobalStats, v int) { g.CGTImplantee = v }},
}

func (s *Service) compute(ctx context.Context) (*GlobalStats, error) {
	started := time.Now()
	g := &GlobalStats{StatutCounts: map[string]int{}}

	for _, q := range scalarQueries {
		var v int
		if err := s.db.QueryRowContext(ctx, q.query).Scan(&v); err != nil {
			return nil, fmt.Errorf("stats %s: %w", q.name, err)
		}
		q.set(g, v)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT statut, COUNT(*) FROM siret_summary GROUP BY statut`)
	if err != nil {
		return nil, fmt.Errorf("stats statut counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var statut string
		var n int
		if err := rows.Scan(&statut, &n); err != nil {
			return nil, fmt.Errorf("scan statut count: %w", err)
		}
		g.StatutCounts[statut] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats statut counts: %w", err)
	}

	g.ComputedAt = time.Now().UTC()
	s.logger.Info("global stats computed",
		zap.Int("pv_events", g.PVEvents),
		zap.Int("invitations", g.Invitations),
		zap.Int("summary_rows", g.SummaryRows),
		zap.Duration("elapsed", time.Since(started)),
	)
	return g, nil
}
