package remote

import (
	"context"
	"fmt"

	"quiz-practice/internal/domain"
)

// CatalogLoader builds a collection by paging through the question listing.
type CatalogLoader struct {
	client   *Client
	pageSize int
}

func NewCatalogLoader(client *Client, pageSize int) *CatalogLoader {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &CatalogLoader{client: client, pageSize: pageSize}
}

func (l *CatalogLoader) LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	collection := domain.Collection{ID: collectionID}
	for page := 1; ; page++ {
		res, err := l.client.ListQuestions(ctx, collectionID, page, l.pageSize)
		if IsNotFound(err) {
			return domain.Collection{}, domain.ErrCollectionNotFound
		}
		if err != nil {
			return domain.Collection{}, fmt.Errorf("list questions page %d: %w", page, err)
		}
		if collection.Name == "" {
			collection.Name = res.CollectionName
		}
		collection.Questions = append(collection.Questions, res.Items...)
		if len(res.Items) == 0 || len(collection.Questions) >= res.TotalCount {
			return collection, nil
		}
	}
}
