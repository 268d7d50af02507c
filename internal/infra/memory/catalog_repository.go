package memory

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-practice/internal/domain"
)

// CatalogLoader fetches a question collection from a backing store
// (Postgres, the remote API, or a static map).
type CatalogLoader interface {
	LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error)
}

// CatalogRepository serves validated collections from memory. Entries
// expire after a jittered TTL, and concurrent misses for one collection
// share a single load. A collection that fails validation is never cached.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	loads  singleflight.Group

	mu      sync.RWMutex
	entries map[string]catalogEntry
}

type catalogEntry struct {
	collection domain.Collection
	expiresAt  time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]catalogEntry),
	}
}

func (r *CatalogRepository) GetCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	if collection, ok := r.lookup(collectionID); ok {
		return collection, nil
	}
	v, err, _ := r.loads.Do(collectionID, func() (interface{}, error) {
		if collection, ok := r.lookup(collectionID); ok {
			return collection, nil
		}
		return r.load(ctx, collectionID)
	})
	if err != nil {
		return domain.Collection{}, err
	}
	return v.(domain.Collection), nil
}

func (r *CatalogRepository) lookup(collectionID string) (domain.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[collectionID]
	if !ok || !r.clock().Before(entry.expiresAt) {
		return domain.Collection{}, false
	}
	return entry.collection, true
}

func (r *CatalogRepository) load(ctx context.Context, collectionID string) (domain.Collection, error) {
	collection, err := r.loader.LoadCollection(ctx, collectionID)
	if err != nil {
		return domain.Collection{}, err
	}
	if err := collection.Validate(); err != nil {
		log.Printf("catalog %s rejected: %v", collectionID, err)
		return domain.Collection{}, err
	}

	r.mu.Lock()
	r.entries[collectionID] = catalogEntry{
		collection: collection,
		expiresAt:  r.clock().Add(withJitter(r.ttl)),
	}
	r.mu.Unlock()
	log.Printf("catalog %s loaded with %d questions", collectionID, len(collection.Questions))
	return collection, nil
}

// withJitter adds up to 10% to ttl so entries loaded together expire apart.
func withJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl + time.Duration(rand.Int64N(int64(ttl)/10+1))
}

// StaticCatalogLoader serves collections from an in-memory map (tests, demos, offline mode).
type StaticCatalogLoader struct {
	collections map[string]domain.Collection
}

func NewStaticCatalogLoader(collections map[string]domain.Collection) *StaticCatalogLoader {
	return &StaticCatalogLoader{collections: collections}
}

func (l *StaticCatalogLoader) LoadCollection(_ context.Context, collectionID string) (domain.Collection, error) {
	if collection, ok := l.collections[collectionID]; ok {
		return collection, nil
	}
	return domain.Collection{}, domain.ErrCollectionNotFound
}
