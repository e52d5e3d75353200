package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// ErrReadOnly is returned by write operations on a read-only storage.
var ErrReadOnly = errors.New("storage is read-only")

// KeyValue represents a key-value pair for batch operations.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Storage provides a simple key-value store backed by Pebble.
// In read-write mode writes are non-blocking (NoSync) and a background
// goroutine periodically syncs the WAL to disk.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	readOnly bool          // readOnly disables writes and the sync loop
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
}

// New opens (or creates) a read-write Storage at the given path.
// It starts a background goroutine that syncs the WAL periodically.
func New(path string) (*Storage, error) {
	db, err := pebble.Open(path, readWriteOptions())
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// OpenReadOnly opens an existing database without write access.
// It fails if no database exists at path.
func OpenReadOnly(path string) (*Storage, error) {
	db, err := pebble.Open(path, readOnlyOptions())
	if err != nil {
		return nil, err
	}

	return &Storage{db: db, readOnly: true}, nil
}

func readWriteOptions() *pebble.Options {
	return &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
		Logger:                      pebbleLogger{},
	}
}

func readOnlyOptions() *pebble.Options {
	return &pebble.Options{
		ReadOnly:         true,
		ErrorIfNotExists: true,
		Logger:           pebbleLogger{},
	}
}

// ReadOnly reports whether the storage rejects writes.
func (s *Storage) ReadOnly() bool {
	return s.readOnly
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Set stores a key-value pair.
// The write is buffered and synced periodically by the background goroutine.
func (s *Storage) Set(key, value []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}

	return s.db.Set(key, value, pebble.NoSync)
}

// Delete removes a key from the store.
func (s *Storage) Delete(key []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}

	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch atomically stores multiple key-value pairs.
// Either all pairs are written or none.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	if s.readOnly {
		return ErrReadOnly
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(pebble.NoSync)
}

// Iterate calls fn for each key-value pair in the database.
// If fn returns an error, iteration stops and the error is returned.
// Keys are visited in lexicographic order; key and value are only valid
// during the call.
func (s *Storage) Iterate(fn func(key, value []byte) error) error {
	return s.iterate(nil, fn)
}

// IteratePrefix calls fn for each key-value pair with the given prefix.
// Uses Pebble's iterator bounds for efficient prefix scanning.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	return s.iterate(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	}, fn)
}

func (s *Storage) iterate(opts *pebble.IterOptions, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(key, value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil // all 0xFF: unbounded
}

// Flush forces a WAL sync, making every previous write durable.
func (s *Storage) Flush() error {
	if s.readOnly {
		return nil
	}

	return s.sync()
}

// Close stops the sync goroutine and closes the database.
// In read-write mode it performs a final sync before closing.
func (s *Storage) Close() error {
	if s.readOnly {
		return s.db.Close()
	}

	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
