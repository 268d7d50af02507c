package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-practice/internal/domain"
)

// CatalogLoader loads question collections stored as JSONB in Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCollection(ctx context.Context, collectionID string) (domain.Collection, error) {
	var (
		name string
		raw  []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT name, questions FROM collections WHERE id=$1`, collectionID).Scan(&name, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Collection{}, domain.ErrCollectionNotFound
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("load collection: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return domain.Collection{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return domain.Collection{ID: collectionID, Name: name, Questions: questions}, nil
}
