package dump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"SlotReplay/internal/model"
)

const (
	filePrefix   = "block_slot_"
	rawSuffix    = ".bin"
	zstdSuffix   = ".bin.zst"
	fileDirPerms = 0o755
)

// FileTree reads dumps stored as one file per slot:
// block_slot_<thread>_<period>.bin, optionally zstd-compressed as .bin.zst.
type FileTree struct {
	dir     string
	decoder *zstd.Decoder
}

// OpenFileTree opens a dump directory.
func OpenFileTree(dir string) (*FileTree, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOpen, dir)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}

	return &FileTree{dir: dir, decoder: decoder}, nil
}

// FileName returns the uncompressed dump file name of slot.
func FileName(slot model.Slot) string {
	return fmt.Sprintf("%s%d_%d%s", filePrefix, slot.Thread, slot.Period, rawSuffix)
}

// Read returns the frame stored for slot. A plain file wins over a compressed one.
func (f *FileTree) Read(slot model.Slot) ([]byte, error) {
	path := filepath.Join(f.dir, FileName(slot))

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s:\n%w", path, err)
	}

	compressed, err := os.ReadFile(path + ".zst")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s.zst:\n%w", path, err)
	}

	data, err = f.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s.zst:\n%w", path, err)
	}

	return present(data), nil
}

// ListSlots enumerates dump files. Subdirectories are skipped; any other
// regular file whose name does not follow the dump pattern fails enumeration.
func (f *FileTree) ListSlots() ([]model.Slot, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	seen := make(map[model.Slot]struct{}, len(entries))
	slots := make([]model.Slot, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		slot, err := ParseFileName(entry.Name())
		if err != nil {
			return nil, err
		}

		if _, dup := seen[slot]; dup {
			continue
		}

		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}

	return slots, nil
}

// Close releases the decoder.
func (f *FileTree) Close() error {
	f.decoder.Close()
	return nil
}

// ParseFileName maps a dump file name to its slot.
func ParseFileName(name string) (model.Slot, error) {
	rest, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return model.Slot{}, fmt.Errorf("%w: unexpected file %q", ErrEnumeration, name)
	}

	if trimmed, ok := strings.CutSuffix(rest, zstdSuffix); ok {
		rest = trimmed
	} else if trimmed, ok := strings.CutSuffix(rest, rawSuffix); ok {
		rest = trimmed
	} else {
		return model.Slot{}, fmt.Errorf("%w: unexpected file %q", ErrEnumeration, name)
	}

	threadText, periodText, ok := strings.Cut(rest, "_")
	if !ok {
		return model.Slot{}, fmt.Errorf("%w: unexpected file %q", ErrEnumeration, name)
	}

	thread, err := strconv.ParseUint(threadText, 10, 8)
	if err != nil {
		return model.Slot{}, fmt.Errorf("%w: thread in %q: %w", ErrEnumeration, name, err)
	}

	period, err := strconv.ParseUint(periodText, 10, 64)
	if err != nil {
		return model.Slot{}, fmt.Errorf("%w: period in %q: %w", ErrEnumeration, name, err)
	}

	return model.Slot{Period: period, Thread: uint8(thread)}, nil
}

// FileTreeWriter writes dumps in the file-tree layout.
type FileTreeWriter struct {
	dir     string
	encoder *zstd.Encoder // encoder is nil when writing plain files
}

// NewFileTreeWriter creates dir if needed. With compress set, files are
// written zstd-compressed with the .bin.zst suffix.
func NewFileTreeWriter(dir string, compress bool) (*FileTreeWriter, error) {
	if err := os.MkdirAll(dir, fileDirPerms); err != nil {
		return nil, fmt.Errorf("create dump dir:\n%w", err)
	}

	w := &FileTreeWriter{dir: dir}

	if compress {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create encoder:\n%w", err)
		}
		w.encoder = encoder
	}

	return w, nil
}

// Put stores frame as the dump of slot.
func (w *FileTreeWriter) Put(slot model.Slot, frame []byte) error {
	path := filepath.Join(w.dir, FileName(slot))

	if w.encoder != nil {
		return os.WriteFile(path+".zst", w.encoder.EncodeAll(frame, nil), 0o644)
	}

	return os.WriteFile(path, frame, 0o644)
}

// Close releases the encoder.
func (w *FileTreeWriter) Close() error {
	if w.encoder != nil {
		return w.encoder.Close()
	}

	return nil
}
