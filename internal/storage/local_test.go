package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestAdapter(t *testing.T) *LocalAdapter {
	t.Helper()
	dir := t.TempDir()
	adapter, err := OpenLocal(filepath.Join(dir, "test.loopvault"))
	if err != nil {
		t.Fatalf("Failed to open adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	if err := adapter.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init adapter: %v", err)
	}
	return adapter
}

func TestInitIdempotent(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	if !adapter.IsReady() {
		t.Error("adapter should be ready after Init")
	}
	if err := adapter.Init(ctx); err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	if !adapter.IsReady() {
		t.Error("adapter should stay ready after repeated Init")
	}
}

func TestKindAndCapabilities(t *testing.T) {
	adapter := openTestAdapter(t)

	if adapter.Kind() != KindLocal {
		t.Errorf("Kind() = %v, want KindLocal", adapter.Kind())
	}
	caps := adapter.Capabilities()
	if !caps.SupportsBlobs {
		t.Error("local adapter should support blobs")
	}
	if caps.SupportsSync {
		t.Error("local adapter should not support background sync")
	}
	if caps.MaxBlobSize != MaxLocalBlobSize {
		t.Errorf("MaxBlobSize = %d, want %d", caps.MaxBlobSize, MaxLocalBlobSize)
	}
}

func TestKeyValueOperations(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	// Missing key returns the sentinel, not a StorageError
	_, err := adapter.Get(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	if err := adapter.Set(ctx, "vault/meta", []byte("payload")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	value, err := adapter.Get(ctx, "vault/meta")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(value) != "payload" {
		t.Errorf("Get() = %q, want %q", value, "payload")
	}

	has, err := adapter.Has(ctx, "vault/meta")
	if err != nil {
		t.Fatalf("Has() failed: %v", err)
	}
	if !has {
		t.Error("Has() should report existing key")
	}

	if err := adapter.Delete(ctx, "vault/meta"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	has, err = adapter.Has(ctx, "vault/meta")
	if err != nil {
		t.Fatalf("Has() after delete failed: %v", err)
	}
	if has {
		t.Error("Has() should report deleted key as absent")
	}
}

func TestKeysPrefix(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	for _, key := range []string{"conflict/a", "conflict/b", "vault/meta"} {
		if err := adapter.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	keys, err := adapter.Keys(ctx, "conflict/")
	if err != nil {
		t.Fatalf("Keys() failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys(conflict/) returned %d keys, want 2", len(keys))
	}
	for _, k := range keys {
		if k != "conflict/a" && k != "conflict/b" {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestPutBlobDedup(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	data := []byte("identical audio bytes")

	ref1, err := adapter.PutBlob(ctx, data, "audio/wav")
	if err != nil {
		t.Fatalf("first PutBlob() failed: %v", err)
	}
	ref2, err := adapter.PutBlob(ctx, data, "audio/wav")
	if err != nil {
		t.Fatalf("second PutBlob() failed: %v", err)
	}

	if ref1.ID != ref2.ID {
		t.Errorf("same bytes produced different ids: %s vs %s", ref1.ID, ref2.ID)
	}
	if ref1.Checksum != ref1.ID {
		t.Errorf("checksum %s should equal id %s", ref1.Checksum, ref1.ID)
	}

	entries, err := adapter.ListBlobs(ctx)
	if err != nil {
		t.Fatalf("ListBlobs() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 stored blob after dedup, got %d", len(entries))
	}
}

func TestBlobRoundTrip(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	data := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x01}
	ref, err := adapter.PutBlob(ctx, data, "audio/wav")
	if err != nil {
		t.Fatalf("PutBlob() failed: %v", err)
	}

	got, err := adapter.GetBlob(ctx, ref.ID)
	if err != nil {
		t.Fatalf("GetBlob() failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("GetBlob() = %v, want %v", got, data)
	}

	has, err := adapter.HasBlob(ctx, ref.ID)
	if err != nil {
		t.Fatalf("HasBlob() failed: %v", err)
	}
	if !has {
		t.Error("HasBlob() should report stored blob")
	}

	if err := adapter.DeleteBlob(ctx, ref.ID); err != nil {
		t.Fatalf("DeleteBlob() failed: %v", err)
	}
	_, err = adapter.GetBlob(ctx, ref.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlob() after delete = %v, want ErrNotFound", err)
	}
}

func TestPutBlobSizeLimit(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	oversize := make([]byte, MaxLocalBlobSize+1)
	_, putErr := adapter.PutBlob(ctx, oversize, "audio/wav")
	var sizeErr *SizeLimitError
	if !errors.As(putErr, &sizeErr) {
		t.Fatalf("PutBlob(oversize) = %v, want *SizeLimitError", putErr)
	}
}

func TestNoOpSyncSurface(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	status, err := adapter.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("SyncStatus() failed: %v", err)
	}
	if status.State != "local" || status.Pending != 0 {
		t.Errorf("unexpected local sync status: %+v", status)
	}

	if err := adapter.Sync(ctx); err != nil {
		t.Errorf("Sync() no-op failed: %v", err)
	}
	pending, err := adapter.PendingChanges(ctx)
	if err != nil {
		t.Fatalf("PendingChanges() failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("PendingChanges() = %d, want 0", pending)
	}
}

func TestCompact(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	ref, err := adapter.PutBlob(ctx, []byte("to be removed"), "audio/wav")
	if err != nil {
		t.Fatalf("PutBlob() failed: %v", err)
	}
	if err := adapter.DeleteBlob(ctx, ref.ID); err != nil {
		t.Fatalf("DeleteBlob() failed: %v", err)
	}
	if err := adapter.Set(ctx, "vault/meta", []byte("kept")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := adapter.Compact(); err != nil {
		t.Fatalf("Compact() failed: %v", err)
	}

	value, err := adapter.Get(ctx, "vault/meta")
	if err != nil {
		t.Fatalf("Get() after compact failed: %v", err)
	}
	if string(value) != "kept" {
		t.Errorf("Get() after compact = %q, want %q", value, "kept")
	}
}
