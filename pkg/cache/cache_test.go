package cache

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFile_SetGet(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, ok, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != "value" {
		t.Errorf("expected value, got %s", data)
	}
}

func TestFile_SetLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Overwrites go through rename, so only the final entry files remain.
	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	entries := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", path)
		}
		entries++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if entries != 1 {
		t.Errorf("expected 1 entry file, got %d", entries)
	}
}

func TestFile_Miss(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected cache miss")
	}
}

func TestFile_Expiry(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	_, ok, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected expired entry to be a miss")
	}
}

func TestFile_Delete(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_ = c.Set(ctx, "key", []byte("value"), 0)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "key"); ok {
		t.Error("expected miss after delete")
	}

	// Deleting a missing key is not an error.
	if err := c.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete of absent key: %v", err)
	}
}

func TestMemory_Eviction(t *testing.T) {
	c := NewMemory(2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("expected hit for a")
	}

	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok, _ := c.Get(ctx, "c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestMemory_UpdateExisting(t *testing.T) {
	c := NewMemory(2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "a", []byte("2"), 0)

	data, ok, _ := c.Get(ctx, "a")
	if !ok || string(data) != "2" {
		t.Errorf("expected updated value 2, got %q (hit=%v)", data, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory(4)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Nanosecond)
	time.Sleep(time.Millisecond)

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("expected expired entry to be a miss")
	}
}

func TestNull_NeverStores(t *testing.T) {
	c := NewNull()
	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "key"); ok {
		t.Error("null cache should never hit")
	}
}
