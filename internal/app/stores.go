package app

import (
	"context"
	"time"

	"quiz-practice/internal/store"
)

// Stores bundles the durable local stores of one profile.
type Stores struct {
	Answers  *store.AnswerStore
	Progress *store.ProgressStore
	Sessions *store.SessionStore
}

// OpenStores restores all local stores from storage. Callers scope storage
// to a profile with store.Scoped.
func OpenStores(ctx context.Context, storage store.Storage, sessionTTL time.Duration) Stores {
	return Stores{
		Answers:  store.NewAnswerStore(ctx, storage),
		Progress: store.NewProgressStore(ctx, storage),
		Sessions: store.NewSessionStore(ctx, storage, sessionTTL),
	}
}
