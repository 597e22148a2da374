package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// In-memory repositories backing the service tests.

type memToyRepo struct {
	toys map[uuid.UUID]*inventory.Toy
}

func newMemToyRepo() *memToyRepo {
	return &memToyRepo{toys: make(map[uuid.UUID]*inventory.Toy)}
}

func (r *memToyRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Toy, error) {
	t, ok := r.toys[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memToyRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Toy, error) {
	out := make([]inventory.Toy, 0, len(r.toys))
	for _, t := range r.toys {
		out = append(out, *t)
	}
	return out, nil
}

func (r *memToyRepo) Save(_ context.Context, t *inventory.Toy) error {
	cp := *t
	r.toys[t.ID] = &cp
	return nil
}

func (r *memToyRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.toys, id)
	return nil
}

func (r *memToyRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.toys)), nil
}

func (r *memToyRepo) FindBySKU(_ context.Context, sku string) (*inventory.Toy, error) {
	for _, t := range r.toys {
		if t.SKU == sku {
			cp := *t
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memToyRepo) SaveWithLock(_ context.Context, t *inventory.Toy, expectedVersion int) error {
	current, ok := r.toys[t.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	t.IncrementVersion()
	cp := *t
	r.toys[t.ID] = &cp
	return nil
}

func (r *memToyRepo) FindLowStock(_ context.Context) ([]inventory.Toy, error) {
	var out []inventory.Toy
	for _, t := range r.toys {
		if t.IsLowStock() || t.IsOutOfStock() {
			out = append(out, *t)
		}
	}
	return out, nil
}

type memLedgerRepo struct {
	entries []inventory.LedgerEntry
}

func (r *memLedgerRepo) Append(_ context.Context, e *inventory.LedgerEntry) error {
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memLedgerRepo) FindByToyID(_ context.Context, toyID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.LedgerEntry], error) {
	var matched []*inventory.LedgerEntry
	for i := range r.entries {
		if r.entries[i].ToyID == toyID {
			matched = append(matched, &r.entries[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if filter.PageSize <= 0 || end > len(matched) {
		end = len(matched)
	}
	return shared.NewPaginated(matched[start:end], total, filter.Page, filter.PageSize), nil
}

func (r *memLedgerRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var out []inventory.LedgerEntry
	for _, e := range r.entries {
		if e.OrderID != nil && *e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) FindByBatchID(_ context.Context, batchID string) ([]inventory.LedgerEntry, error) {
	var out []inventory.LedgerEntry
	for _, e := range r.entries {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memAlertRepo struct {
	alerts map[uuid.UUID]*inventory.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[uuid.UUID]*inventory.Alert)}
}

func (r *memAlertRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Alert, error) {
	a, ok := r.alerts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAlertRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Alert, error) {
	out := make([]inventory.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, *a)
	}
	return out, nil
}

func (r *memAlertRepo) Save(_ context.Context, a *inventory.Alert) error {
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.alerts, id)
	return nil
}

func (r *memAlertRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.alerts)), nil
}

func (r *memAlertRepo) FindActiveByToyID(_ context.Context, toyID uuid.UUID) ([]inventory.Alert, error) {
	var out []inventory.Alert
	for _, a := range r.alerts {
		if a.ToyID == toyID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAlertRepo) FindActive(_ context.Context, filter shared.Filter) (shared.Paginated[*inventory.Alert], error) {
	var out []*inventory.Alert
	for _, a := range r.alerts {
		if a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return shared.NewPaginated(out, int64(len(out)), filter.Page, filter.PageSize), nil
}

type memReservationRepo struct {
	reservations map[uuid.UUID]*inventory.Reservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{reservations: make(map[uuid.UUID]*inventory.Reservation)}
}

func (r *memReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	res, ok := r.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memReservationRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Reservation, error) {
	out := make([]inventory.Reservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, *res)
	}
	return out, nil
}

func (r *memReservationRepo) Save(_ context.Context, res *inventory.Reservation) error {
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r *memReservationRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.reservations, id)
	return nil
}

func (r *memReservationRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.reservations)), nil
}

func (r *memReservationRepo) FindActiveByOrderID(_ context.Context, orderID uuid.UUID) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	for _, res := range r.reservations {
		if res.OrderID == orderID && res.IsActive() {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpired(_ context.Context, asOf time.Time, limit int) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	for _, res := range r.reservations {
		if res.IsExpiredAt(asOf) {
			out = append(out, *res)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memReservationRepo) SaveWithLock(_ context.Context, res *inventory.Reservation, expectedVersion int) error {
	current, ok := r.reservations[res.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	res.IncrementVersion()
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

// testEnv bundles the fakes behind a no-op transaction scope
type testEnv struct {
	toys         *memToyRepo
	ledger       *memLedgerRepo
	alerts       *memAlertRepo
	reservations *memReservationRepo
	scope        *NoOpTransactionScope
}

func newTestEnv() *testEnv {
	toys := newMemToyRepo()
	ledger := &memLedgerRepo{}
	alerts := newMemAlertRepo()
	reservations := newMemReservationRepo()
	return &testEnv{
		toys:         toys,
		ledger:       ledger,
		alerts:       alerts,
		reservations: reservations,
		scope:        NewNoOpTransactionScope(toys, ledger, alerts, reservations),
	}
}

func (e *testEnv) addToy(name string, quantity int) *inventory.Toy {
	toy, _ := inventory.NewToy(name, "SKU-"+uuid.NewString()[:8], "test", 1)
	toy.AvailableQuantity = quantity
	e.toys.toys[toy.ID] = toy
	return toy
}
