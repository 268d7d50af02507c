package store

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-practice/internal/domain"
)

// DefaultSessionTTL is how long an anonymous session survives without activity.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore holds the single active anonymous quiz session. Expiry is
// checked lazily on every read; there is no background sweep.
type SessionStore struct {
	storage Storage
	ttl     time.Duration
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	current *domain.QuizSession
}

// NewSessionStore restores the persisted session, if any.
func NewSessionStore(ctx context.Context, storage Storage, ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(ctx, storage, ttl, time.Now)
}

// NewSessionStoreWithClock allows tests to move time forward.
func NewSessionStoreWithClock(ctx context.Context, storage Storage, ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		storage: storage,
		ttl:     ttl,
		now:     now,
		newID:   uuid.NewString,
	}
	var saved domain.QuizSession
	if restore(ctx, storage, SessionKey, &saved) && saved.ID != "" {
		if saved.Answers == nil {
			saved.Answers = make(map[int]domain.Answer)
		}
		s.current = &saved
	}
	return s
}

// CreateSession replaces any existing session with a fresh snapshot.
func (s *SessionStore) CreateSession(ctx context.Context, collectionID, collectionName string, questions []domain.Question) (domain.QuizSession, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	session := &domain.QuizSession{
		ID:             s.newID(),
		CollectionID:   collectionID,
		CollectionName: collectionName,
		Questions:      append([]domain.Question(nil), questions...),
		Answers:        make(map[int]domain.Answer),
		TimeSpent:      make(map[int]int),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.current = session
	log.Printf("session %s created with %d questions", session.ID, len(questions))
	return cloneSession(session), persist(ctx, s.storage, SessionKey, session)
}

// GetCurrentSession returns the active session unless it has expired, in
// which case it is deleted.
func (s *SessionStore) GetCurrentSession(ctx context.Context) (domain.QuizSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(ctx) {
		return domain.QuizSession{}, false
	}
	return cloneSession(s.current), true
}

// UpdateAnswer records an in-session answer and bumps the activity time.
// A positive timeSpent replaces the elapsed time recorded for the question.
// Without an active session, or for a question outside the session, nothing
// is recorded and the Result carries domain.ErrSessionNotFound or
// domain.ErrQuestionNotFound.
func (s *SessionStore) UpdateAnswer(ctx context.Context, questionID int, answer domain.Answer, timeSpent time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(ctx) {
		return Result{Err: domain.ErrSessionNotFound}
	}
	if !slices.Contains(s.current.QuestionIDs(), questionID) {
		return Result{Err: fmt.Errorf("%w: question %d is not part of session %s", domain.ErrQuestionNotFound, questionID, s.current.ID)}
	}
	s.current.Answers[questionID] = answer.Clone()
	if timeSpent > 0 {
		if s.current.TimeSpent == nil {
			s.current.TimeSpent = make(map[int]int)
		}
		s.current.TimeSpent[questionID] = int(timeSpent / time.Second)
	}
	s.current.LastActivityAt = s.now()
	return persist(ctx, s.storage, SessionKey, s.current)
}

// IsComplete reports whether every session question has an answer.
func (s *SessionStore) IsComplete(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked(ctx) {
		return false
	}
	answered := 0
	for _, q := range s.current.Questions {
		if _, ok := s.current.Answers[q.ID]; ok {
			answered++
		}
	}
	return answered == len(s.current.Questions)
}

// ClearSession ends the session explicitly.
func (s *SessionStore) ClearSession(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return remove(ctx, s.storage, SessionKey)
}

// TTL returns the inactivity window.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) activeLocked(ctx context.Context) bool {
	if s.current == nil {
		return false
	}
	if s.now().Sub(s.current.LastActivityAt) > s.ttl {
		log.Printf("session %s expired after inactivity", s.current.ID)
		s.current = nil
		remove(ctx, s.storage, SessionKey)
		return false
	}
	return true
}

func cloneSession(src *domain.QuizSession) domain.QuizSession {
	out := *src
	out.Questions = append([]domain.Question(nil), src.Questions...)
	out.Answers = make(map[int]domain.Answer, len(src.Answers))
	for id, answer := range src.Answers {
		out.Answers[id] = answer.Clone()
	}
	out.TimeSpent = make(map[int]int, len(src.TimeSpent))
	for id, secs := range src.TimeSpent {
		out.TimeSpent[id] = secs
	}
	return out
}
