package repository

import (
	"context"
	"sync"

	"cse-data/internal/domain"
)

// In-memory repositories for tests and for running the pipeline without a
// database. They implement the same interfaces as the Postgres versions and
// keep the same append-only / full-replace semantics.

type MemoryPVEventsRepo struct {
	mu     sync.RWMutex
	nextID int64
	events []domain.PVEvent
}

func NewMemoryPVEventsRepo() *MemoryPVEventsRepo {
	return &MemoryPVEventsRepo{nextID: 1}
}

func (r *MemoryPVEventsRepo) InsertBatch(_ context.Context, events []domain.PVEvent) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		e.ID = r.nextID
		r.nextID++
		r.events = append(r.events, e)
	}
	return len(events), nil
}

func (r *MemoryPVEventsRepo) ListAll(_ context.Context) ([]domain.PVEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PVEvent, len(r.events))
	copy(out, r.events)
	return out, nil
}

type MemoryInvitationsRepo struct {
	mu          sync.RWMutex
	nextID      int64
	invitations []domain.Invitation
}

func NewMemoryInvitationsRepo() *MemoryInvitationsRepo {
	return &MemoryInvitationsRepo{nextID: 1}
}

func (r *MemoryInvitationsRepo) InsertBatch(_ context.Context, invitations []domain.Invitation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range invitations {
		inv.ID = r.nextID
		r.nextID++
		r.invitations = append(r.invitations, inv)
	}
	return len(invitations), nil
}

func (r *MemoryInvitationsRepo) ListAll(_ context.Context) ([]domain.Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Invitation, len(r.invitations))
	copy(out, r.invitations)
	return out, nil
}

func (r *MemoryInvitationsRepo) UpdateExtracted(_ context.Context, inv *domain.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.invitations {
		if r.invitations[i].ID == inv.ID {
			updated := *inv
			updated.Raw = r.invitations[i].Raw
			r.invitations[i] = updated
			return nil
		}
	}
	return ErrNotFound
}

type MemorySummaryRepo struct {
	mu   sync.RWMutex
	rows []domain.SiretSummary
}

func NewMemorySummaryRepo() *MemorySummaryRepo {
	return &MemorySummaryRepo{}
}

func (r *MemorySummaryRepo) ReplaceAll(_ context.Context, rows []domain.SiretSummary) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make([]domain.SiretSummary, len(rows))
	copy(r.rows, rows)
	return len(rows), nil
}

// Rows returns a copy of the current summary, for assertions.
func (r *MemorySummaryRepo) Rows() []domain.SiretSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SiretSummary, len(r.rows))
	copy(out, r.rows)
	return out
}
