package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// newTestStorage creates a temporary read-write storage.
func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s, path
}

func TestSetAndGet(t *testing.T) {
	s, _ := newTestStorage(t)

	key := []byte("f:slot")
	value := []byte("finalized")

	if err := s.Set(key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}
}

func TestGetNonExistent(t *testing.T) {
	s, _ := newTestStorage(t)

	got, err := s.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get returned %q, want nil", got)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStorage(t)

	key := []byte("to-delete")

	if err := s.Set(key, []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("Get after Delete returned %q, want nil", got)
	}
}

func TestSetBatch(t *testing.T) {
	s, _ := newTestStorage(t)

	pairs := []KeyValue{
		{Key: []byte("batch-1"), Value: []byte("value-1")},
		{Key: []byte("batch-2"), Value: []byte("value-2")},
		{Key: []byte("batch-3"), Value: []byte("value-3")},
	}

	if err := s.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	for _, kv := range pairs {
		got, err := s.Get(kv.Key)
		if err != nil {
			t.Fatalf("Get failed for %q: %v", kv.Key, err)
		}

		if !bytes.Equal(got, kv.Value) {
			t.Errorf("Get(%q) = %q, want %q", kv.Key, got, kv.Value)
		}
	}
}

func TestIteratePrefix(t *testing.T) {
	s, _ := newTestStorage(t)

	pairs := []KeyValue{
		{Key: []byte("f:2"), Value: []byte("b")},
		{Key: []byte("f:1"), Value: []byte("a")},
		{Key: []byte("o:1"), Value: []byte("x")},
		{Key: []byte("m:change_id"), Value: []byte("y")},
	}
	if err := s.SetBatch(pairs); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	var keys []string
	err := s.IteratePrefix([]byte("f:"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePrefix failed: %v", err)
	}

	if len(keys) != 2 || keys[0] != "f:1" || keys[1] != "f:2" {
		t.Errorf("keys = %v, want [f:1 f:2]", keys)
	}
}

func TestIterate_StopsOnError(t *testing.T) {
	s, _ := newTestStorage(t)

	for i := 0; i < 5; i++ {
		if err := s.Set([]byte(fmt.Sprintf("k%d", i)), []byte{byte(i)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	stop := errors.New("stop")
	count := 0

	err := s.Iterate(func(_, _ []byte) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})

	if !errors.Is(err, stop) {
		t.Errorf("Iterate error = %v, want %v", err, stop)
	}

	if count != 2 {
		t.Errorf("visited %d entries, want 2", count)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("f:"), []byte("f;")},
		{[]byte{0x01, 0xff}, []byte{0x02}},
		{[]byte{0xff, 0xff}, nil},
	}

	for _, tt := range tests {
		if got := prefixUpperBound(tt.prefix); !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.prefix, got, tt.want)
		}
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Set([]byte("key"), []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	got, err := ro.Get([]byte("key"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(got, []byte("value")) {
		t.Errorf("Get returned %q, want %q", got, "value")
	}

	if err := ro.Set([]byte("key"), []byte("other")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set on read-only = %v, want ErrReadOnly", err)
	}
}

func TestOpenReadOnly_Missing(t *testing.T) {
	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error opening missing database")
	}
}
