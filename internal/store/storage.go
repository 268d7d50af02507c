package store

import (
	"context"
	"encoding/json"
	"log"
)

// Storage is the durable key/value backend (memory, Redis, SQLite).
// Load reports ok=false when the key is absent.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Logical storage keys.
const (
	AnswersKey  = "quiz:answers"
	ProgressKey = "quiz:progress"
	SessionKey  = "quiz:session:current"
)

// Result reports whether a mutation reached durable storage. Storage
// failures leave the in-memory effect applied, so it may only be lost on
// restart. Domain errors such as a missing session mean nothing was recorded.
type Result struct {
	Err error
}

// Persisted reports whether the write reached durable storage.
func (r Result) Persisted() bool {
	return r.Err == nil
}

func persist(ctx context.Context, storage Storage, key string, value any) Result {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("store: encode %s: %v", key, err)
		return Result{Err: err}
	}
	if err := storage.Save(ctx, key, data); err != nil {
		log.Printf("store: save %s: %v", key, err)
		return Result{Err: err}
	}
	return Result{}
}

func remove(ctx context.Context, storage Storage, key string) Result {
	if err := storage.Delete(ctx, key); err != nil {
		log.Printf("store: delete %s: %v", key, err)
		return Result{Err: err}
	}
	return Result{}
}

// restore decodes the durable copy into dst. Missing or unreadable data
// leaves dst untouched and is only logged.
func restore(ctx context.Context, storage Storage, key string, dst any) bool {
	data, ok, err := storage.Load(ctx, key)
	if err != nil {
		log.Printf("store: load %s: %v", key, err)
		return false
	}
	if !ok || len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("store: decode %s: %v", key, err)
		return false
	}
	return true
}

// Scoped confines storage to one profile: every key is stored under
// profile:{profile}:{key}, so profiles sharing a backend never see each
// other's answers, progress or session.
func Scoped(storage Storage, profile string) Storage {
	return scopedStorage{inner: storage, prefix: "profile:" + profile + ":"}
}

type scopedStorage struct {
	inner  Storage
	prefix string
}

func (s scopedStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Load(ctx, s.prefix+key)
}

func (s scopedStorage) Save(ctx context.Context, key string, value []byte) error {
	return s.inner.Save(ctx, s.prefix+key, value)
}

func (s scopedStorage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}
