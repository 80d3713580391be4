package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	key := "documents/a/invoice/abc-1.pdf"

	loc, err := m.Put(ctx, key, []byte("%PDF"))
	if err != nil {
		t.Fatal(err)
	}
	if loc != "memory://"+key {
		t.Errorf("location %s", loc)
	}
	if ok, _ := m.Exists(ctx, key); !ok {
		t.Error("blob should exist after put")
	}

	data, err := m.Get(ctx, key)
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("get: %q %v", data, err)
	}
	data[0] = 'X'
	again, _ := m.Get(ctx, key)
	if string(again) != "%PDF" {
		t.Error("Get must return a copy")
	}

	url, err := m.SignedURL(ctx, key, time.Minute)
	if err != nil || !strings.HasPrefix(url, "memory://"+key+"?expires=") {
		t.Errorf("signed url %q %v", url, err)
	}

	m.Delete(key)
	if ok, _ := m.Exists(ctx, key); ok {
		t.Error("blob still exists after delete")
	}
	if _, err := m.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if m.Puts() != 1 {
		t.Errorf("puts = %d", m.Puts())
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Put(ctx, "k", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewGCSStore_RequiresBucket(t *testing.T) {
	if _, err := NewGCSStore(context.Background(), GCSConfig{}); err == nil {
		t.Fatal("expected error without a bucket")
	}
}
