package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStorageSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	storage := NewStorage(client, "profile-1")
	ctx := context.Background()

	if _, ok, err := storage.Load(ctx, "quiz:progress"); ok || err != nil {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}

	if err := storage.Save(ctx, "quiz:progress", []byte(`{"totalCorrect":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("profile-1:quiz:progress") {
		t.Fatalf("expected prefixed redis key to be set")
	}
	if ttl := mr.TTL("profile-1:quiz:progress"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}

	data, ok, err := storage.Load(ctx, "quiz:progress")
	if err != nil || !ok || string(data) != `{"totalCorrect":1}` {
		t.Fatalf("unexpected load result %q ok=%v err=%v", data, ok, err)
	}

	if err := storage.Delete(ctx, "quiz:progress"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("profile-1:quiz:progress") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestStorageSurfacesConnectionErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	storage := NewStorage(client, "")
	mr.Close()

	if err := storage.Save(context.Background(), "quiz:answers", []byte("{}")); err == nil {
		t.Fatalf("expected save to fail once redis is gone")
	}
}
