package objstorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePutGetDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	content := []byte("%PDF-1.7 test content")
	if err := store.PutObject(ctx, "/tenant-1/dep-1/report.pdf", content); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	res, err := store.GetObject(ctx, "/tenant-1/dep-1/report.pdf")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if string(res.Content) != string(content) {
		t.Fatalf("content mismatch: %q", res.Content)
	}

	if err := store.DeleteObject(ctx, "/tenant-1/dep-1/report.pdf"); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}

	// 重复删除必须幂等
	if err := store.DeleteObject(ctx, "/tenant-1/dep-1/report.pdf"); err != nil {
		t.Fatalf("repeated delete should be a no-op: %v", err)
	}

	if _, err := store.GetObject(ctx, "/tenant-1/dep-1/report.pdf"); err == nil {
		t.Fatal("expected error reading deleted object")
	}
}

func TestLocalStorePutLeavesNoStagingFiles(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	if err := store.PutObject(context.Background(), "a/b/c.bin", []byte{1, 2, 3}); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "a", "b"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "c.bin" {
			t.Fatalf("unexpected leftover entry: %s", e.Name())
		}
	}
}
