// Package snapshot inspects restored copies of the state database.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"SlotReplay/internal/model"
	"SlotReplay/internal/storage"
)

const (
	// BackupPattern matches backup directories under a database root.
	BackupPattern = "backup_*_*"

	backupPrefix = "backup_"
)

// ChangeIDKey holds the slot key of the last change applied to the database.
var ChangeIDKey = []byte("m:change_id")

// ErrNoChangeID is returned when the database records no last slot.
var ErrNoChangeID = errors.New("database has no change id")

// Info describes one backup directory.
type Info struct {
	Path     string     // Path is the backup directory
	NameSlot model.Slot // NameSlot is the slot encoded in the directory name
	LastSlot model.Slot // LastSlot is the slot recorded in the database
	Hash     model.Hash // Hash is the content hash of the database
	Entries  int        // Entries is the number of key-value pairs
	Err      error      // Err is set when the backup could not be inspected
}

// List inspects every backup under dbRoot, sorted by path.
// Per-backup failures are reported in Info.Err.
func List(dbRoot string) ([]Info, error) {
	paths, err := filepath.Glob(filepath.Join(dbRoot, BackupPattern))
	if err != nil {
		return nil, fmt.Errorf("glob backups:\n%w", err)
	}

	sort.Strings(paths)

	infos := make([]Info, 0, len(paths))
	for _, path := range paths {
		infos = append(infos, inspect(path))
	}

	return infos, nil
}

// inspect opens one backup read-only and summarizes it.
func inspect(path string) Info {
	info := Info{Path: path}

	if slot, err := ParseBackupName(filepath.Base(path)); err == nil {
		info.NameSlot = slot
	}

	db, err := storage.OpenReadOnly(path)
	if err != nil {
		info.Err = fmt.Errorf("open:\n%w", err)
		return info
	}
	defer db.Close()

	if info.LastSlot, err = LastSlot(db); err != nil {
		info.Err = err
		return info
	}

	if info.Hash, info.Entries, err = ContentHash(db); err != nil {
		info.Err = err
	}

	return info
}

// ParseBackupName maps backup_<period>_<thread> to its slot.
func ParseBackupName(name string) (model.Slot, error) {
	rest, ok := strings.CutPrefix(name, backupPrefix)
	if !ok {
		return model.Slot{}, fmt.Errorf("backup name %q", name)
	}

	periodText, threadText, ok := strings.Cut(rest, "_")
	if !ok {
		return model.Slot{}, fmt.Errorf("backup name %q", name)
	}

	period, err := strconv.ParseUint(periodText, 10, 64)
	if err != nil {
		return model.Slot{}, fmt.Errorf("backup period %q:\n%w", name, err)
	}

	thread, err := strconv.ParseUint(threadText, 10, 8)
	if err != nil {
		return model.Slot{}, fmt.Errorf("backup thread %q:\n%w", name, err)
	}

	return model.Slot{Period: period, Thread: uint8(thread)}, nil
}

// LastSlot returns the slot recorded under the change-id key.
func LastSlot(db *storage.Storage) (model.Slot, error) {
	data, err := db.Get(ChangeIDKey)
	if err != nil {
		return model.Slot{}, fmt.Errorf("read change id:\n%w", err)
	}

	if data == nil {
		return model.Slot{}, ErrNoChangeID
	}

	slot, err := model.SlotFromKey(data)
	if err != nil {
		return model.Slot{}, fmt.Errorf("decode change id:\n%w", err)
	}

	return slot, nil
}

// SetLastSlot records slot under the change-id key.
func SetLastSlot(db *storage.Storage, slot model.Slot) error {
	key := slot.Key()
	return db.Set(ChangeIDKey, key[:])
}

// ContentHash computes a blake3 hash over every key-value pair in key order.
// Format per entry: u32 key length + key + u32 value length + value (big-endian).
func ContentHash(db *storage.Storage) (model.Hash, int, error) {
	hasher := blake3.New()
	entries := 0

	var buf [4]byte

	err := db.Iterate(func(key, value []byte) error {
		binary.BigEndian.PutUint32(buf[:], uint32(len(key)))
		hasher.Write(buf[:])
		hasher.Write(key)

		binary.BigEndian.PutUint32(buf[:], uint32(len(value)))
		hasher.Write(buf[:])
		hasher.Write(value)

		entries++
		return nil
	})
	if err != nil {
		return model.Hash{}, 0, fmt.Errorf("iterate database:\n%w", err)
	}

	var h model.Hash
	hasher.Sum(h[:0])

	return h, entries, nil
}
