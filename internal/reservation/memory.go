package reservation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/reservation-engine/internal/interval"
)

// memoryRepository keeps reservations in process. Transactions are staged on a
// copy of the table and swapped in only when the callback succeeds.
type memoryRepository struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	byID  map[string]*Reservation
	clock func() time.Time
}

func NewMemoryRepository(seed ...*Reservation) Repository {
	r := &memoryRepository{
		byID:  make(map[string]*Reservation),
		clock: time.Now,
	}
	for _, res := range seed {
		cp := res.clone()
		if cp.ID == "" {
			cp.ID = uuid.NewString()
		}
		if cp.Status == "" {
			cp.Status = StatusReserved
		}
		r.byID[cp.ID] = cp
	}
	return r
}

// WithinTx runs one transaction at a time, so Tx.Lock has nothing left to exclude.
func (r *memoryRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	staged := make(map[string]*Reservation, len(r.byID))
	for id, res := range r.byID {
		staged[id] = res.clone()
	}
	r.mu.RUnlock()

	if err := fn(&memoryWriter{byID: staged, now: r.clock().UTC()}); err != nil {
		return err
	}

	r.mu.Lock()
	r.byID = staged
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return forResources(r.byID, resourceIDs, span), nil
}

func forResources(byID map[string]*Reservation, resourceIDs []string, span *interval.Interval) []*Reservation {
	wanted := make(map[string]bool, len(resourceIDs))
	for _, id := range resourceIDs {
		wanted[id] = true
	}

	var out []*Reservation
	for _, res := range byID {
		if span != nil && !res.Interval().Overlaps(*span) {
			continue
		}
		for _, it := range res.Items {
			if wanted[it.ResourceID] {
				out = append(out, res.clone())
				break
			}
		}
	}
	sortByStart(out, true)
	return out
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return res.clone(), nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Reservation
	for _, res := range r.byID {
		if filter.RequesterID != "" && res.RequesterID != filter.RequesterID {
			continue
		}
		if filter.ResourceID != "" {
			if _, ok := res.Holds(filter.ResourceID); !ok {
				continue
			}
		}
		if filter.Status != "" && string(res.Status) != filter.Status {
			continue
		}
		if filter.StartTime != nil && !res.EndTime.After(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && !res.StartTime.Before(*filter.EndTime) {
			continue
		}
		all = append(all, res.clone())
	}
	sortByStart(all, strings.EqualFold(filter.SortOrder, "ASC"))

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func sortByStart(list []*Reservation, asc bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.StartTime.Equal(b.StartTime) {
			if asc {
				return a.StartTime.Before(b.StartTime)
			}
			return a.StartTime.After(b.StartTime)
		}
		return a.ID < b.ID
	})
}

type memoryWriter struct {
	byID map[string]*Reservation
	now  time.Time
}

func (w *memoryWriter) Lock(ctx context.Context, keys []string) error {
	return ctx.Err()
}

func (w *memoryWriter) ListForResources(ctx context.Context, resourceIDs []string, span *interval.Interval) ([]*Reservation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	return forResources(w.byID, resourceIDs, span), nil
}

func (w *memoryWriter) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, ok := w.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !res.Status.CanTransition(status) {
		return ErrStatusTransition
	}
	res.Status = status
	res.UpdatedAt = w.now
	return nil
}

func (w *memoryWriter) Create(ctx context.Context, res *Reservation) error {
	res.ID = uuid.NewString()
	res.CreatedAt = w.now
	res.UpdatedAt = w.now
	w.byID[res.ID] = res.clone()
	return nil
}
