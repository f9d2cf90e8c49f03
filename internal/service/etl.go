// Package service orchestrates the import pipeline: spreadsheet ingestion,
// summary rebuilds behind the single-flight tracker, directory enrichment
// and cache invalidation.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"cse-data/internal/ingest"
	"cse-data/internal/metrics"
	"cse-data/internal/repository"
	"cse-data/internal/stats"
	"cse-data/internal/summary"
)

// ETLResult is what a pipeline invocation reports back to the caller.
type ETLResult struct {
	Inserted int
	Skipped  int
	Warnings []string
	Errors   []string
	Success  bool
}

// Source labels used on the ingestion metrics.
const (
	sourcePV          = "pv"
	sourceInvitations = "invitations"
)

type ETLService struct {
	pvIngestor    *ingest.PVIngestor
	invitIngestor *ingest.InvitationIngestor
	invitsRepo    repository.InvitationsRepository
	builder       *summary.Builder
	tracker       *RebuildTracker
	stats         *stats.Service
	sirene        EtablissementLookup
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewETLService wires the pipeline. stats and sirene may be nil; the
// matching steps are then skipped.
func NewETLService(
	pvRepo repository.PVEventsRepository,
	invitsRepo repository.InvitationsRepository,
	summaryRepo repository.SummaryRepository,
	statsService *stats.Service,
	sirene EtablissementLookup,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ETLService {
	return &ETLService{
		pvIngestor:    ingest.NewPVIngestor(pvRepo, logger),
		invitIngestor: ingest.NewInvitationIngestor(invitsRepo, logger),
		invitsRepo:    invitsRepo,
		builder:       summary.NewBuilder(pvRepo, invitsRepo, summaryRepo, logger),
		tracker:       NewRebuildTracker(logger),
		stats:         statsService,
		sirene:        sirene,
		metrics:       m,
		logger:        logger,
	}
}

// Tracker exposes the rebuild task registry.
func (s *ETLService) Tracker() *RebuildTracker { return s.tracker }

// IngestPV imports an election-minute workbook.
func (s *ETLService) IngestPV(ctx context.Context, r io.Reader) (*ETLResult, error) {
	return s.ingest(ctx, sourcePV, func() (*ingest.Result, error) {
		return s.pvIngestor.Ingest(ctx, r)
	})
}

// IngestInvitations imports an invitation workbook.
func (s *ETLService) IngestInvitations(ctx context.Context, r io.Reader) (*ETLResult, error) {
	return s.ingest(ctx, sourceInvitations, func() (*ingest.Result, error) {
		return s.invitIngestor.Ingest(ctx, r)
	})
}

func (s *ETLService) ingest(ctx context.Context, source string, run func() (*ingest.Result, error)) (*ETLResult, error) {
	res, err := run()
	if err != nil {
		return &ETLResult{Errors: []string{err.Error()}}, err
	}
	if s.metrics != nil {
		s.metrics.RowsIngested.WithLabelValues(source).Add(float64(res.Inserted))
		s.metrics.RowsSkipped.WithLabelValues(source).Add(float64(res.Skipped))
	}
	s.invalidateStats(ctx)
	return &ETLResult{
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Warnings: res.Warnings,
		Success:  true,
	}, nil
}

// Rebuild regenerates the whole summary table. Only one rebuild runs at a
// time; a concurrent call fails fast with ErrRebuildInProgress.
func (s *ETLService) Rebuild(ctx context.Context) (*Task, error) {
	started := time.Now()
	task, err := s.tracker.Run(ctx, s.builder.Rebuild)
	if s.metrics != nil {
		switch {
		case err == ErrRebuildInProgress:
			s.metrics.RebuildRuns.WithLabelValues("rejected").Inc()
		case err != nil:
			s.metrics.RebuildRuns.WithLabelValues(TaskFailed).Inc()
		default:
			s.metrics.RebuildRuns.WithLabelValues(TaskCompleted).Inc()
			s.metrics.RebuildDur.Observe(time.Since(started).Seconds())
			s.metrics.SummaryRows.Set(float64(task.Rows))
		}
	}
	if err != nil {
		return task, err
	}
	s.invalidateStats(ctx)
	return task, nil
}

// BackfillInvitations re-extracts the dedicated invitation columns from the
// stored payloads.
func (s *ETLService) BackfillInvitations(ctx context.Context) (int, error) {
	n, err := s.invitIngestor.Backfill(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.invalidateStats(ctx)
	}
	return n, nil
}

// EnrichInvitations fills missing invitation fields from the establishment
// directory. Lookup failures skip the row; the pass reports how many rows
// changed and the errors it swallowed.
func (s *ETLService) EnrichInvitations(ctx context.Context) (*ETLResult, error) {
	if s.sirene == nil {
		return nil, fmt.Errorf("no directory client configured")
	}
	invitations, err := s.invitsRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load invitations: %w", err)
	}

	res := &ETLResult{Success: true}
	seen := map[string]*Etablissement{}
	for i := range invitations {
		inv := &invitations[i]
		if inv.Denomination != nil && inv.Adresse != nil && inv.Commune != nil {
			res.Skipped++
			continue
		}
		etab, ok := seen[inv.Siret]
		if !ok {
			etab, err = s.sirene.Lookup(ctx, inv.Siret)
			if err != nil {
				if s.metrics != nil {
					s.metrics.SireneLookups.WithLabelValues("error").Inc()
				}
				res.Errors = append(res.Errors, err.Error())
				s.logger.Warn("directory lookup failed",
					zap.String("siret", inv.Siret),
					zap.Error(err),
				)
				continue
			}
			if s.metrics != nil {
				s.metrics.SireneLookups.WithLabelValues("ok").Inc()
			}
			seen[inv.Siret] = etab
		}
		if !EnrichInvitation(inv, etab) {
			res.Skipped++
			continue
		}
		if err := s.invitsRepo.UpdateExtracted(ctx, inv); err != nil {
			return res, fmt.Errorf("store enriched invitation id=%d: %w", inv.ID, err)
		}
		res.Inserted++
	}

	s.logger.Info("invitation enrichment done",
		zap.Int("updated", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (s *ETLService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
