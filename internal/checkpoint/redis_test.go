package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreSaveAndLoad(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "+5511999990000", []byte(`{"id":"+5511999990000"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"id":"+5511999990000"}` {
		t.Fatalf("unexpected payload %q", got)
	}
	if ttl := mr.TTL("checkpoint:+5511999990000"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newTestRedisStore(t, 0)
	got, err := store.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("expected no error for missing key, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil payload, got %q", got)
	}
}

func TestRedisStoreExpires(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()
	if err := store.Save(ctx, "conv", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	got, err := store.Load(ctx, "conv")
	if err != nil || got != nil {
		t.Fatalf("expected expired checkpoint, got %q err=%v", got, err)
	}
}

func TestRedisStoreConnectionError(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	mr.Close()
	if _, err := store.Load(context.Background(), "conv"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
