// Package summary rebuilds the one-row-per-SIRET reconciled view from the
// raw PV-event and invitation stores. Rebuilds are full: the summary table
// is deleted and regenerated from scratch, so running the builder twice over
// unchanged stores produces the identical row set.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"cse-data/internal/domain"
	"cse-data/internal/normalize"
	"cse-data/internal/repository"
)

// Legal cycle windows. A PV event only counts for a cycle when its ballot
// date falls inside that cycle's window; anything outside both windows is
// excluded entirely.
var (
	c3Start = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	c3End   = time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
	c4Start = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	c4End   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

// carenceMarker flags no-candidate ballots in the free-text institution
// field.
const carenceMarker = "carence"

type Builder struct {
	pv     repository.PVEventsRepository
	invits repository.InvitationsRepository
	store  repository.SummaryRepository
	logger *zap.Logger
}

func NewBuilder(
	pv repository.PVEventsRepository,
	invits repository.InvitationsRepository,
	store repository.SummaryRepository,
	logger *zap.Logger,
) *Builder {
	return &Builder{pv: pv, invits: invits, store: store, logger: logger}
}

// Rebuild regenerates the whole summary and returns the row count. All
// loading and transformation happens before the destructive replace, so a
// failure anywhere in the computation leaves the previous summary intact.
func (b *Builder) Rebuild(ctx context.Context) (int, error) {
	started := time.Now()

	events, err := b.pv.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pv events: %w", err)
	}
	invitations, err := b.invits.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load invitations: %w", err)
	}

	events = normalizeEvents(events)
	if len(events) == 0 {
		// Invitations alone never populate the summary.
		if _, err := b.store.ReplaceAll(ctx, nil); err != nil {
			return 0, fmt.Errorf("clear summary: %w", err)
		}
		b.logger.Info("summary rebuilt empty: no pv events")
		return 0, nil
	}

	latestC3 := latestPerSiret(events, domain.CycleC3, c3Start, c3End)
	latestC4 := latestPerSiret(events, domain.CycleC4, c4Start, c4End)
	invitDates, latestInvit := invitationDates(invitations)

	rows := mergeCycles(latestC3, latestC4, latestInvit)
	scrubInvitationDates(rows, invitDates)

	count, err := b.store.ReplaceAll(ctx, rows)
	if err != nil {
		return count, fmt.Errorf("replace summary: %w", err)
	}

	b.logger.Info("summary rebuilt",
		zap.Int("rows", count),
		zap.Int("pv_events", len(events)),
		zap.Int("invitations", len(invitations)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return count, nil
}

// normalizeEvents re-normalizes identifiers and drops events left without
// one. Events may have entered the store through paths other than our own
// ingestors, so the builder does not trust stored identifiers.
func normalizeEvents(events []domain.PVEvent) []domain.PVEvent {
	out := events[:0]
	for _, e := range events {
		e.Siret = normalize.Siret(e.Siret)
		if e.Siret == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// isCarence derives the no-candidate flag: a "carence" marker anywhere in
// the institution field, or a voters count of zero or less (absent counts as
// zero).
func isCarence(e domain.PVEvent) bool {
	if strings.Contains(strings.ToLower(e.Institution), carenceMarker) {
		return true
	}
	votants := 0
	if e.Votants != nil {
		votants = *e.Votants
	}
	return votants <= 0
}

// latestPerSiret keeps the single most-recent in-window event per
// identifier for one cycle. Equal dates keep the first event encountered.
func latestPerSiret(events []domain.PVEvent, cycle string, start, end time.Time) map[string]domain.PVEvent {
	latest := map[string]domain.PVEvent{}
	for _, e := range events {
		if normalize.Cycle(e.Cycle) != cycle || e.DatePV == nil {
			continue
		}
		if e.DatePV.Before(start) || e.DatePV.After(end) {
			continue
		}
		stored, ok := latest[e.Siret]
		if !ok || e.DatePV.After(*stored.DatePV) {
			latest[e.Siret] = e
		}
	}
	return latest
}

// invitationDates returns the set of every invitation date seen (for the
// anti-overlap scrub) and the most recent invitation date per identifier.
// Ties on equal dates resolve to the last row scanned, which is input order.
func invitationDates(invitations []domain.Invitation) (map[time.Time]bool, map[string]time.Time) {
	all := map[time.Time]bool{}
	latest := map[string]time.Time{}
	for _, inv := range invitations {
		siret := normalize.Siret(inv.Siret)
		if siret == "" {
			continue
		}
		d := inv.DateInvit
		all[d] = true
		if stored, ok := latest[siret]; !ok || !d.Before(stored) {
			latest[siret] = d
		}
	}
	return all, latest
}

func cycleSummary(e domain.PVEvent) domain.CycleSummary {
	carence := isCarence(e)
	return domain.CycleSummary{
		DatePV:   e.DatePV,
		Carence:  &carence,
		Inscrits: e.Inscrits,
		Votants:  e.Votants,
		Votes:    e.Votes,
	}
}

// firstOf returns the first non-nil, non-empty value.
func firstOf(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

// mergeCycles outer-joins the per-cycle latest sets and layers the latest
// invitation date on top. Only identifiers with at least one in-window PV
// event get a row; invitation-only identifiers do not.
func mergeCycles(latestC3, latestC4 map[string]domain.PVEvent, latestInvit map[string]time.Time) []domain.SiretSummary {
	sirets := make([]string, 0, len(latestC3)+len(latestC4))
	seen := map[string]bool{}
	for s := range latestC3 {
		sirets = append(sirets, s)
		seen[s] = true
	}
	for s := range latestC4 {
		if !seen[s] {
			sirets = append(sirets, s)
		}
	}
	sort.Strings(sirets)

	rows := make([]domain.SiretSummary, 0, len(sirets))
	for _, siret := range sirets {
		c3, hasC3 := latestC3[siret]
		c4, hasC4 := latestC4[siret]

		row := domain.SiretSummary{Siret: siret}
		var c3RS, c3IDCC, c3Dep, c3Region, c3UD, c3UL, c3CP, c3Ville *string
		if hasC3 {
			row.C3 = cycleSummary(c3)
			c3RS, c3IDCC = c3.RaisonSociale, c3.IDCC
			c3Dep, c3Region, c3UD, c3UL = c3.Departement, c3.Region, c3.UD, c3.UL
			c3CP, c3Ville = c3.CP, c3.Ville
		}
		var c4RS, c4IDCC, c4Dep, c4Region, c4UD, c4UL, c4CP, c4Ville *string
		if hasC4 {
			row.C4 = cycleSummary(c4)
			c4RS, c4IDCC = c4.RaisonSociale, c4.IDCC
			c4Dep, c4Region, c4UD, c4UL = c4.Departement, c4.Region, c4.UD, c4.UL
			c4CP, c4Ville = c4.CP, c4.Ville
		}

		// Cycle-4 values win, cycle-3 fills the gaps; the department falls
		// back once more to the union-departmental field when still absent.
		row.RaisonSociale = firstOf(c4RS, c3RS)
		row.IDCC = firstOf(c4IDCC, c3IDCC)
		row.UD = firstOf(c4UD, c3UD)
		row.Departement = firstOf(c4Dep, c3Dep, row.UD)
		row.Region = firstOf(c4Region, c3Region)
		row.UL = firstOf(c4UL, c3UL)
		row.CP = firstOf(c4CP, c3CP)
		row.Ville = firstOf(c4Ville, c3Ville)

		switch {
		case hasC3 && hasC4:
			row.Statut = domain.StatutC3C4
		case hasC4:
			row.Statut = domain.StatutC4
		case hasC3:
			row.Statut = domain.StatutC3
		default:
			row.Statut = domain.StatutNone
		}

		row.DatePVMax = maxDate(row.C3.DatePV, row.C4.DatePV)

		// CGT presence considers cycle 4 only; an old cycle-3 base says
		// nothing about today.
		if hasC4 && c4.Votes.CGT != nil && *c4.Votes.CGT > 0 {
			row.CGTImplantee = true
		}

		if d, ok := latestInvit[siret]; ok {
			dd := d
			row.DatePAPC5 = &dd
		}

		rows = append(rows, row)
	}
	return rows
}

func maxDate(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

// scrubInvitationDates nulls any computed ballot date that exactly matches a
// known invitation date. Invitation dates have been found merged into ballot
// date columns by upstream tooling; this guard keeps them from surviving as
// fake ballots.
func scrubInvitationDates(rows []domain.SiretSummary, invitDates map[time.Time]bool) {
	if len(invitDates) == 0 {
		return
	}
	hit := func(d *time.Time) *time.Time {
		if d != nil && invitDates[*d] {
			return nil
		}
		return d
	}
	for i := range rows {
		rows[i].C3.DatePV = hit(rows[i].C3.DatePV)
		rows[i].C4.DatePV = hit(rows[i].C4.DatePV)
		rows[i].DatePVMax = hit(rows[i].DatePVMax)
	}
}
