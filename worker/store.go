package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
)

type FrameStats struct {
	Created time.Time
	Rows    int64
	Reads   atomic.Int64
}

type frameEntry struct {
	record arrow.Record
	stats  *FrameStats
}

// frameStore holds the worker-resident records behind data frame handles.
type frameStore struct {
	storage       map[uuid.UUID]*frameEntry
	storageLocker sync.RWMutex
}

func newFrameStore() *frameStore {
	return &frameStore{
		storage: make(map[uuid.UUID]*frameEntry),
	}
}

// put takes ownership of rec.
func (m *frameStore) put(rec arrow.Record) uuid.UUID {
	uid, err := uuid.NewV7()
	if err != nil {
		uid = uuid.New()
	}

	entry := &frameEntry{
		record: rec,
		stats:  &FrameStats{Created: time.Now(), Rows: rec.NumRows()},
	}

	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	m.storage[uid] = entry
	return uid
}

// acquire returns the record retained for the caller.
func (m *frameStore) acquire(id uuid.UUID) (arrow.Record, bool) {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	entry, ok := m.storage[id]
	if !ok {
		return nil, false
	}
	entry.record.Retain()
	entry.stats.Reads.Add(1)
	return entry.record, true
}

func (m *frameStore) drop(id uuid.UUID) bool {
	m.storageLocker.Lock()
	entry, ok := m.storage[id]
	delete(m.storage, id)
	m.storageLocker.Unlock()

	if ok {
		entry.record.Release()
	}
	return ok
}

func (m *frameStore) stats(id uuid.UUID) (*FrameStats, bool) {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	entry, ok := m.storage[id]
	if !ok {
		return nil, false
	}
	return entry.stats, true
}

func (m *frameStore) len() int {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	return len(m.storage)
}

func (m *frameStore) clear() {
	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	for id, entry := range m.storage {
		entry.record.Release()
		delete(m.storage, id)
	}
}
