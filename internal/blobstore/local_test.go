package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestLocalStorePutGetStat(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	exists, err := store.StatObject(ctx, "ab/cd/abcd")
	if err != nil {
		t.Fatalf("stat missing: %v", err)
	}
	if exists {
		t.Fatalf("expected missing object")
	}

	content := []byte("hello")
	if err := store.PutObject(ctx, "ab/cd/abcd", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A second put for the same key is a no-op.
	if err := store.PutObject(ctx, "ab/cd/abcd", bytes.NewReader([]byte("hello")), 5); err != nil {
		t.Fatalf("put again: %v", err)
	}

	exists, err = store.StatObject(ctx, "ab/cd/abcd")
	if err != nil || !exists {
		t.Fatalf("expected object to exist, ok=%v err=%v", exists, err)
	}

	rc, err := store.GetObject(ctx, "ab/cd/abcd")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("expected %q, got %q", content, data)
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	_, err = store.GetObject(context.Background(), "ab/cd/missing")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStoreRejectsBadKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"", "/abs/key", "../escape", "a/../../b"} {
		if err := store.PutObject(ctx, key, bytes.NewReader(nil), 0); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
