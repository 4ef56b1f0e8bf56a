package expense

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const pendingBucketName = "pending"

// PendingStore holds at most one in-flight record per user awaiting
// confirmation. Keys are Telegram user IDs; slots are isolated per user and
// writes are last-write-wins.
type PendingStore interface {
	// Get returns the user's pending record, if any.
	Get(userID int64) (Record, bool, error)

	// Set replaces the user's pending record.
	Set(userID int64, rec Record) error

	// Clear removes the user's pending record. Clearing an empty slot is
	// not an error.
	Clear(userID int64) error

	// Close closes the store.
	Close() error
}

// MemoryStore implements PendingStore with an in-process map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

// Get returns the user's pending record, if any.
func (m *MemoryStore) Get(userID int64) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	return rec, ok, nil
}

// Set replaces the user's pending record.
func (m *MemoryStore) Set(userID int64, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = rec
	return nil
}

// Clear removes the user's pending record.
func (m *MemoryStore) Clear(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// BoltStore implements PendingStore using BoltDB so pending slots survive
// process restarts.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pendingBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func storeKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}

// Get returns the user's pending record, if any.
func (b *BoltStore) Get(userID int64) (Record, bool, error) {
	var rec Record
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(pendingBucketName)).Get(storeKey(userID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshaling record: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, found, nil
}

// Set replaces the user's pending record.
func (b *BoltStore) Set(userID int64, rec Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return tx.Bucket([]byte(pendingBucketName)).Put(storeKey(userID), data)
	})
}

// Clear removes the user's pending record.
func (b *BoltStore) Clear(userID int64) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(pendingBucketName)).Delete(storeKey(userID))
	})
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
