package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-practice/internal/domain"
)

// CatalogLoader fetches a question collection from a backing store.
type CatalogLoader interface {
	LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error)
}

// CatalogRepository caches whole collections in Redis and falls back to a
// loader on cache miss. Collections are validated before they are stored as
// JSON under catalog:{collectionID} with a jittered TTL.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	if collection, ok := r.cached(ctx, collectionID); ok {
		return collection, nil
	}

	result, err, _ := r.sf.Do(collectionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if collection, ok := r.cached(ctx, collectionID); ok {
			return collection, nil
		}

		collection, err := r.loader.LoadCollection(ctx, collectionID)
		if err != nil {
			return domain.Collection{}, err
		}
		if err := collection.Validate(); err != nil {
			log.Printf("catalog %s rejected: %v", collectionID, err)
			return domain.Collection{}, err
		}

		data, err := json.Marshal(collection)
		if err == nil {
			err = r.client.Set(ctx, r.key(collectionID), data, r.ttlWithJitter()).Err()
		}
		if err != nil {
			log.Printf("catalog cache write %s: %v", collectionID, err)
		}
		return collection, nil
	})
	if err != nil {
		return domain.Collection{}, err
	}
	return result.(domain.Collection), nil
}

func (r *CatalogRepository) cached(ctx context.Context, collectionID string) (domain.Collection, bool) {
	data, err := r.client.Get(ctx, r.key(collectionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("catalog cache read %s: %v", collectionID, err)
		}
		return domain.Collection{}, false
	}
	var collection domain.Collection
	if err := json.Unmarshal(data, &collection); err != nil {
		log.Printf("catalog cache decode %s: %v", collectionID, err)
		return domain.Collection{}, false
	}
	return collection, true
}

func (r *CatalogRepository) key(collectionID string) string {
	return "catalog:" + collectionID
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
