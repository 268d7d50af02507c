package store

import (
	"context"
	"sync"

	"quiz-practice/internal/domain"
)

// AnswerStore keeps raw answers per category and question, independent of
// server connectivity. Every mutation rewrites the whole map under AnswersKey.
type AnswerStore struct {
	storage Storage

	mu      sync.RWMutex
	answers map[domain.Category]map[int]domain.Answer
}

// NewAnswerStore restores previously persisted answers, starting empty when
// none can be read.
func NewAnswerStore(ctx context.Context, storage Storage) *AnswerStore {
	s := &AnswerStore{
		storage: storage,
		answers: make(map[domain.Category]map[int]domain.Answer),
	}
	var saved map[domain.Category]map[int]domain.Answer
	if restore(ctx, storage, AnswersKey, &saved) {
		for cat, byID := range saved {
			if len(byID) > 0 {
				s.answers[cat] = byID
			}
		}
	}
	return s
}

// SaveAnswer overwrites any prior value for the question.
func (s *AnswerStore) SaveAnswer(ctx context.Context, category domain.Category, questionID int, answer domain.Answer) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.answers[category]
	if !ok {
		byID = make(map[int]domain.Answer)
		s.answers[category] = byID
	}
	byID[questionID] = answer.Clone()
	return persist(ctx, s.storage, AnswersKey, s.answers)
}

// GetAnswer returns the stored answer, if any.
func (s *AnswerStore) GetAnswer(category domain.Category, questionID int) (domain.Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[category][questionID]
	if !ok {
		return domain.Answer{}, false
	}
	return answer.Clone(), true
}

// GetAnswersForQuestions returns the stored answers for the given questions.
// Questions without an answer are omitted.
func (s *AnswerStore) GetAnswersForQuestions(category domain.Category, questionIDs []int) map[int]domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]domain.Answer)
	byID := s.answers[category]
	for _, id := range questionIDs {
		if answer, ok := byID[id]; ok {
			out[id] = answer.Clone()
		}
	}
	return out
}

// ClearAnswer removes a single answer. Clearing an absent answer is a no-op.
func (s *AnswerStore) ClearAnswer(ctx context.Context, category domain.Category, questionID int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.answers[category]
	if !ok {
		return Result{}
	}
	if _, ok := byID[questionID]; !ok {
		return Result{}
	}
	delete(byID, questionID)
	if len(byID) == 0 {
		delete(s.answers, category)
	}
	return persist(ctx, s.storage, AnswersKey, s.answers)
}

// ClearCategoryAnswers removes every answer of a category.
func (s *AnswerStore) ClearCategoryAnswers(ctx context.Context, category domain.Category) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[category]; !ok {
		return Result{}
	}
	delete(s.answers, category)
	return persist(ctx, s.storage, AnswersKey, s.answers)
}

// ClearAnswers removes every stored answer and the durable entry.
func (s *AnswerStore) ClearAnswers(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = make(map[domain.Category]map[int]domain.Answer)
	return remove(ctx, s.storage, AnswersKey)
}
