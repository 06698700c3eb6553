package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeBaron-dev/Rider/internal/models"
)

type MemoryLocationStore struct {
	mu      sync.RWMutex
	records map[int64]models.LocationRecord
	nextID  int64
	changed chan struct{}
	now     func() time.Time
}

func NewMemoryLocationStore() *MemoryLocationStore {
	return &MemoryLocationStore{
		records: make(map[int64]models.LocationRecord),
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// notify wakes every watcher; callers hold m.mu.
func (m *MemoryLocationStore) notify() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *MemoryLocationStore) Insert(_ context.Context, rec models.LocationRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		m.nextID++
		rec.ID = m.nextID
	} else if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.records[rec.ID] = rec
	m.notify()
	return rec.ID, nil
}

func (m *MemoryLocationStore) Update(_ context.Context, id int64, rec models.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = old.CreatedAt
	}
	m.records[id] = rec
	m.notify()
	return nil
}

// Delete removes id; deleting a missing record is not an error.
func (m *MemoryLocationStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return nil
	}
	delete(m.records, id)
	m.notify()
	return nil
}

func (m *MemoryLocationStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[int64]models.LocationRecord)
	m.notify()
	return nil
}

func (m *MemoryLocationStore) ByID(_ context.Context, id int64) (models.LocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return models.LocationRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryLocationStore) All(ctx context.Context) (<-chan []models.LocationRecord, error) {
	return m.watch(ctx, ""), nil
}

// Search matches keyword as a case-insensitive substring of the address.
func (m *MemoryLocationStore) Search(ctx context.Context, keyword string) (<-chan []models.LocationRecord, error) {
	return m.watch(ctx, strings.ToLower(keyword)), nil
}

func (m *MemoryLocationStore) watch(ctx context.Context, keyword string) <-chan []models.LocationRecord {
	out := make(chan []models.LocationRecord)
	go func() {
		defer close(out)
		for {
			m.mu.RLock()
			list := m.newestFirst(keyword)
			changed := m.changed
			m.mu.RUnlock()

			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// newestFirst filters by keyword; callers hold at least the read lock.
func (m *MemoryLocationStore) newestFirst(keyword string) []models.LocationRecord {
	out := make([]models.LocationRecord, 0, len(m.records))
	for _, r := range m.records {
		if keyword != "" && !strings.Contains(strings.ToLower(r.Address), keyword) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type MemoryDriverStore struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
	nextID  int64
}

func NewMemoryDriverStore() *MemoryDriverStore {
	return &MemoryDriverStore{drivers: make(map[string]models.Driver)}
}

// UpsertAll inserts or replaces drivers by plate. Existing drivers keep their ID.
func (m *MemoryDriverStore) UpsertAll(_ context.Context, drivers []models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drivers {
		m.upsert(d)
	}
	return nil
}

func (m *MemoryDriverStore) upsert(d models.Driver) {
	if old, ok := m.drivers[d.CarPlateNumber]; ok {
		d.ID = old.ID
	} else {
		m.nextID++
		d.ID = m.nextID
	}
	m.drivers[d.CarPlateNumber] = d
}

func (m *MemoryDriverStore) UpdateByPlate(_ context.Context, plate string, d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[plate]; !ok {
		return ErrNotFound
	}
	d.CarPlateNumber = plate
	m.upsert(d)
	return nil
}

// All returns the roster in insertion order.
func (m *MemoryDriverStore) All(_ context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
