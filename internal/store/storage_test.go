package store

import (
	"context"
	"testing"

	"quiz-practice/internal/domain"
	"quiz-practice/internal/infra/memory"
)

func TestScopedStorageIsolatesProfiles(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStorage()
	alice := NewAnswerStore(ctx, Scoped(shared, "user:alice"))
	bob := NewAnswerStore(ctx, Scoped(shared, "user:bob"))

	alice.SaveAnswer(ctx, domain.CategoryOOP, 1, domain.MultiAnswer("B"))
	if _, ok := bob.GetAnswer(domain.CategoryOOP, 1); ok {
		t.Fatalf("profiles must not share in-memory answers")
	}
	if !shared.Has("profile:user:alice:" + AnswersKey) {
		t.Fatalf("expected answers stored under the profile prefix")
	}
	if shared.Has(AnswersKey) {
		t.Fatalf("scoped writes must not touch the unscoped key")
	}

	reopened := NewAnswerStore(ctx, Scoped(shared, "user:bob"))
	if _, ok := reopened.GetAnswer(domain.CategoryOOP, 1); ok {
		t.Fatalf("bob must not restore alice's answers")
	}
	if _, ok := NewAnswerStore(ctx, Scoped(shared, "user:alice")).GetAnswer(domain.CategoryOOP, 1); !ok {
		t.Fatalf("alice's answers must survive a reopen")
	}
}
