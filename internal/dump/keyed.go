package dump

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"SlotReplay/internal/model"
	"SlotReplay/internal/storage"
)

// kvStore is the minimal key-value surface a keyed dump needs.
type kvStore interface {
	get(key []byte) ([]byte, error)        // nil when absent
	keys(fn func(key []byte) error) error // ascending key order
	put(key, value []byte) error
	close() error
}

// Keyed reads dumps from a key-value store mapping slot keys to frames.
type Keyed struct {
	engine string
	store  kvStore
}

// OpenKeyed opens an existing keyed dump read-only.
func OpenKeyed(engine, path string) (*Keyed, error) {
	if engine == "" {
		engine = EnginePebble
	}

	store, err := openStore(engine, path, true)
	if err != nil {
		return nil, err
	}

	return &Keyed{engine: engine, store: store}, nil
}

// Engine returns the store engine name.
func (k *Keyed) Engine() string {
	return k.engine
}

// Read returns the frame stored under the key of slot.
func (k *Keyed) Read(slot model.Slot) ([]byte, error) {
	key := slot.Key()

	data, err := k.store.get(key[:])
	if err != nil {
		return nil, fmt.Errorf("read %s:\n%w", slot, err)
	}

	return data, nil
}

// ListSlots decodes every key of the store as a slot.
func (k *Keyed) ListSlots() ([]model.Slot, error) {
	var slots []model.Slot

	err := k.store.keys(func(key []byte) error {
		slot, err := model.SlotFromKey(key)
		if err != nil {
			return fmt.Errorf("%w: key %x: %w", ErrEnumeration, key, err)
		}

		slots = append(slots, slot)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEnumeration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	return slots, nil
}

// Close closes the store.
func (k *Keyed) Close() error {
	return k.store.close()
}

// KeyedWriter writes dumps into a keyed store.
type KeyedWriter struct {
	store kvStore
}

// NewKeyedWriter opens or creates a keyed dump for writing.
func NewKeyedWriter(engine, path string) (*KeyedWriter, error) {
	if engine == "" {
		engine = EnginePebble
	}

	store, err := openStore(engine, path, false)
	if err != nil {
		return nil, err
	}

	return &KeyedWriter{store: store}, nil
}

// Put stores frame under the key of slot.
func (w *KeyedWriter) Put(slot model.Slot, frame []byte) error {
	key := slot.Key()
	return w.store.put(key[:], frame)
}

// Close flushes and closes the store.
func (w *KeyedWriter) Close() error {
	return w.store.close()
}

func openStore(engine, path string, readOnly bool) (kvStore, error) {
	var (
		store kvStore
		err   error
	)

	switch engine {
	case EnginePebble:
		store, err = openPebble(path, readOnly)
	case EngineLevelDB:
		store, err = openLevelDB(path, readOnly)
	case EngineBadger:
		store, err = openBadger(path, readOnly)
	default:
		return nil, fmt.Errorf("%w: engine %q", ErrUnknownKind, engine)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrOpen, engine, path, err)
	}

	return store, nil
}

// pebbleStore goes through the shared storage wrapper.
type pebbleStore struct {
	db *storage.Storage
}

func openPebble(path string, readOnly bool) (*pebbleStore, error) {
	open := storage.New
	if readOnly {
		open = storage.OpenReadOnly
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}

	return &pebbleStore{db: db}, nil
}

func (p *pebbleStore) get(key []byte) ([]byte, error) { return p.db.Get(key) }
func (p *pebbleStore) put(key, value []byte) error    { return p.db.Set(key, value) }
func (p *pebbleStore) close() error                   { return p.db.Close() }

func (p *pebbleStore) keys(fn func(key []byte) error) error {
	return p.db.Iterate(func(key, _ []byte) error {
		return fn(key)
	})
}

// present maps a stored empty value to a non-nil slice; nil means absent.
func present(value []byte) []byte {
	if value == nil {
		return []byte{}
	}

	return value
}

type levelStore struct {
	db *leveldb.DB
}

func openLevelDB(path string, readOnly bool) (*levelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       readOnly,
		ErrorIfMissing: readOnly,
	})
	if err != nil {
		return nil, err
	}

	return &levelStore{db: db}, nil
}

func (l *levelStore) get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return present(value), nil
}

func (l *levelStore) keys(fn func(key []byte) error) error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key()); err != nil {
			return err
		}
	}

	return iter.Error()
}

func (l *levelStore) put(key, value []byte) error { return l.db.Put(key, value, nil) }
func (l *levelStore) close() error                { return l.db.Close() }

type badgerStore struct {
	db *badger.DB
}

func openBadger(path string, readOnly bool) (*badgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(readOnly).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerStore{db: db}, nil
}

func (b *badgerStore) get(key []byte) ([]byte, error) {
	var value []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return present(value), nil
}

func (b *badgerStore) keys(fn func(key []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := fn(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *badgerStore) put(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *badgerStore) close() error { return b.db.Close() }
