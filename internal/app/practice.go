package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
	"quiz-practice/internal/store"
)

// CatalogRepository loads question collections (from cache/backing store).
type CatalogRepository interface {
	GetCollection(ctx context.Context, collectionID string) (domain.Collection, error)
}

// APIFactory returns a scoring client acting for the given identity, or nil
// to run without a remote service.
type APIFactory func(id identity.Identity) ScoringAPI

// ProfileKey names the storage scope of an identity: user:{subject} when
// authenticated, anon:{client id} otherwise. It is empty for an anonymous
// identity without a client id.
func ProfileKey(id identity.Identity) string {
	if id == nil {
		return ""
	}
	if id.IsAuthenticated() {
		return "user:" + id.Subject()
	}
	if id.Subject() == "" {
		return ""
	}
	return "anon:" + id.Subject()
}

type openProfile struct {
	stores  Stores
	quizzes int
}

// Practice opens quizzes. Each profile gets its own stores over a scoped
// view of the shared storage; quizzes of the same profile share them.
type Practice struct {
	storage    store.Storage
	sessionTTL time.Duration
	catalogs   CatalogRepository
	api        APIFactory

	mu       sync.Mutex
	profiles map[string]*openProfile
}

func NewPractice(storage store.Storage, sessionTTL time.Duration, catalogs CatalogRepository, api APIFactory) *Practice {
	return &Practice{
		storage:    storage,
		sessionTTL: sessionTTL,
		catalogs:   catalogs,
		api:        api,
		profiles:   make(map[string]*openProfile),
	}
}

// Open loads the collection and returns a quiz on the home screen. An
// anonymous identity without a client id gets a profile of its own. Close
// the quiz when done with it.
func (p *Practice) Open(ctx context.Context, collectionID string, id identity.Identity) (*Quiz, error) {
	collection, err := p.catalogs.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if id == nil {
		id = identity.Anonymous{}
	}
	profile := ProfileKey(id)
	if profile == "" {
		profile = "anon:" + uuid.NewString()
	}
	var api ScoringAPI
	if p.api != nil {
		api = p.api(id)
	}
	quiz := NewQuiz(NewAnswerService(api, id, p.acquire(ctx, profile)), collection)
	quiz.release = func() { p.release(profile) }
	return quiz, nil
}

// Stores returns the stores of profile. Stores held by open quizzes are
// shared; otherwise they are restored from storage.
func (p *Practice) Stores(ctx context.Context, profile string) Stores {
	p.mu.Lock()
	open, ok := p.profiles[profile]
	p.mu.Unlock()
	if ok {
		return open.stores
	}
	return OpenStores(ctx, store.Scoped(p.storage, profile), p.sessionTTL)
}

func (p *Practice) acquire(ctx context.Context, profile string) Stores {
	p.mu.Lock()
	defer p.mu.Unlock()
	open, ok := p.profiles[profile]
	if !ok {
		open = &openProfile{stores: OpenStores(ctx, store.Scoped(p.storage, profile), p.sessionTTL)}
		p.profiles[profile] = open
		log.Printf("practice: profile %s opened", profile)
	}
	open.quizzes++
	return open.stores
}

func (p *Practice) release(profile string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	open, ok := p.profiles[profile]
	if !ok {
		return
	}
	open.quizzes--
	if open.quizzes <= 0 {
		delete(p.profiles, profile)
	}
}
