package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "furima:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func newManager(t *testing.T, store *fakeStore, ttl time.Duration) *Manager {
	t.Helper()
	manager, err := NewManager(store, ttl)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

func TestCheckAndMarkProcessedFirstDelivery(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager := newManager(t, store, 24*time.Hour)

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "trade-events-worker", eventID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("first delivery should not report already processed")
	}

	wantKey := "furima:idempotency:evt:processed:trade-events-worker:" + eventID.String()
	if store.lastKey != wantKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessedRedelivery(t *testing.T) {
	manager := newManager(t, &fakeStore{setNXResult: false}, 12*time.Hour)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "trade-events-worker", uuid.New())
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("redelivery should report already processed")
	}
}

func TestCheckAndMarkProcessedStoreError(t *testing.T) {
	manager := newManager(t, &fakeStore{setNXError: errors.New("boom")}, time.Hour)

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "trade-events-worker", uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckAndMarkProcessedValidation(t *testing.T) {
	manager := newManager(t, &fakeStore{setNXResult: true}, time.Hour)

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "trade-events-worker", uuid.Nil); err == nil {
		t.Fatal("expected error for nil event id")
	}
}

func TestDeleteDropsProcessedMarker(t *testing.T) {
	store := &fakeStore{}
	manager := newManager(t, store, time.Hour)

	eventID := uuid.New()
	if err := manager.Delete(context.Background(), "trade-events-worker", eventID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := "furima:idempotency:evt:processed:trade-events-worker:" + eventID.String()
	if store.lastDeleted != want {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
