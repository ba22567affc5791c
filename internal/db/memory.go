package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/interview-progress/internal/types"
)

// MemoryDB keeps progress records in process memory. Records are stored
// encoded so callers never share mutable state with the store.
type MemoryDB struct {
	mu      sync.Mutex
	records map[uuid.UUID][]byte
	locks   map[uuid.UUID]chan struct{}
}

// NewMemoryDB creates an empty in-memory store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		records: make(map[uuid.UUID][]byte),
		locks:   make(map[uuid.UUID]chan struct{}),
	}
}

// Close is a no-op.
func (m *MemoryDB) Close() {}

// GetProgress returns a copy of the user's record, or nil if none exists.
func (m *MemoryDB) GetProgress(_ context.Context, userID uuid.UUID) (*types.ProgressRecord, error) {
	m.mu.Lock()
	doc, ok := m.records[userID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decodeRecord(doc)
}

// BeginProgress takes the per-user lock, waiting until it is free or ctx ends.
func (m *MemoryDB) BeginProgress(ctx context.Context, userID uuid.UUID) (ProgressTx, error) {
	lock := m.userLock(userID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, contentionError("failed to acquire progress lock", ctx.Err())
	}
	return &memoryProgressTx{store: m, userID: userID, lock: lock}, nil
}

func (m *MemoryDB) userLock(userID uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = make(chan struct{}, 1)
		m.locks[userID] = lock
	}
	return lock
}

type memoryProgressTx struct {
	store  *MemoryDB
	userID uuid.UUID
	lock   chan struct{}
	staged []byte
	done   bool
}

func (t *memoryProgressTx) ReadForUpdate(ctx context.Context) (*types.ProgressRecord, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	return t.store.GetProgress(ctx, t.userID)
}

func (t *memoryProgressTx) Write(_ context.Context, record *types.ProgressRecord) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	doc, err := encodeRecord(record)
	if err != nil {
		return err
	}
	t.staged = doc
	return nil
}

func (t *memoryProgressTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if t.staged != nil {
		t.store.mu.Lock()
		t.store.records[t.userID] = t.staged
		t.store.mu.Unlock()
	}
	t.release()
	return nil
}

func (t *memoryProgressTx) Rollback(_ context.Context) error {
	if !t.done {
		t.release()
	}
	return nil
}

func (t *memoryProgressTx) release() {
	t.done = true
	<-t.lock
}
