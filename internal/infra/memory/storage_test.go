package memory

import (
	"context"
	"testing"
)

func TestStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	if _, ok, err := storage.Load(ctx, "quiz:answers"); ok || err != nil {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}

	value := []byte(`{"basics":{}}`)
	if err := storage.Save(ctx, "quiz:answers", value); err != nil {
		t.Fatalf("save: %v", err)
	}
	value[0] = 'x'

	got, ok, err := storage.Load(ctx, "quiz:answers")
	if err != nil || !ok {
		t.Fatalf("expected key present, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"basics":{}}` {
		t.Fatalf("stored value must not alias caller buffer, got %s", got)
	}

	if err := storage.Delete(ctx, "quiz:answers"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if storage.Has("quiz:answers") {
		t.Fatalf("expected key removed")
	}
	if err := storage.Delete(ctx, "quiz:answers"); err != nil {
		t.Fatalf("deleting a missing key must be a no-op: %v", err)
	}
}
