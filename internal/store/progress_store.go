package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"quiz-practice/internal/domain"
)

// Progress is the persisted performance record.
type Progress struct {
	Questions  map[int]*domain.QuestionProgress             `json:"questions"`
	Categories map[domain.Category]*domain.CategoryProgress `json:"categories"`
	Types      map[domain.QuestionType]*domain.TypeProgress `json:"types"`
	Sessions   []SessionRecord                              `json:"sessions"`

	TotalQuestionsAnswered int       `json:"totalQuestionsAnswered"`
	TotalCorrect           int       `json:"totalCorrect"`
	OverallSuccessRate     float64   `json:"overallSuccessRate"`
	CurrentStreak          int       `json:"currentStreak"`
	BestStreak             int       `json:"bestStreak"`
	LastUpdated            time.Time `json:"lastUpdated"`
}

// SessionRecord is an analytics entry; it plays no part in scoring.
type SessionRecord struct {
	ID            string     `json:"id"`
	Mode          string     `json:"mode"`
	QuestionIDs   []int      `json:"questionIds"`
	Filter        []string   `json:"filter"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	AnsweredCount int        `json:"answeredCount"`
	CorrectCount  int        `json:"correctCount"`
}

// SessionUpdate carries the mutable fields of a SessionRecord.
type SessionUpdate struct {
	AnsweredCount int
	CorrectCount  int
	Completed     bool
}

func newProgress() *Progress {
	return &Progress{
		Questions:  make(map[int]*domain.QuestionProgress),
		Categories: make(map[domain.Category]*domain.CategoryProgress),
		Types:      make(map[domain.QuestionType]*domain.TypeProgress),
	}
}

// ProgressStore is the single source of truth for historical performance.
// Aggregates are always recomputed from question records, never patched.
type ProgressStore struct {
	storage Storage
	now     func() time.Time

	mu       sync.RWMutex
	progress *Progress
}

// NewProgressStore restores the persisted progress record.
func NewProgressStore(ctx context.Context, storage Storage) *ProgressStore {
	return NewProgressStoreWithClock(ctx, storage, time.Now)
}

// NewProgressStoreWithClock allows deterministic timestamps in tests.
func NewProgressStoreWithClock(ctx context.Context, storage Storage, now func() time.Time) *ProgressStore {
	s := &ProgressStore{storage: storage, now: now, progress: newProgress()}
	saved := newProgress()
	if restore(ctx, storage, ProgressKey, saved) {
		if saved.Questions == nil {
			saved.Questions = make(map[int]*domain.QuestionProgress)
		}
		if saved.Categories == nil {
			saved.Categories = make(map[domain.Category]*domain.CategoryProgress)
		}
		if saved.Types == nil {
			saved.Types = make(map[domain.QuestionType]*domain.TypeProgress)
		}
		s.progress = saved
	}
	return s
}

// InitializeProgress makes sure every known category and type has an
// aggregate record with the catalog's totals. Answered and correct counts of
// existing records are left alone.
func (s *ProgressStore) InitializeProgress(ctx context.Context, questions []domain.Question) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	catTotals, diffTotals, typeTotals := countCatalog(questions)
	for _, cat := range knownCategories(questions) {
		cp, ok := s.progress.Categories[cat]
		if !ok {
			cp = &domain.CategoryProgress{Category: cat}
			s.progress.Categories[cat] = cp
		}
		cp.TotalQuestions = catTotals[cat]
		if cp.ByDifficulty == nil {
			cp.ByDifficulty = make(map[domain.Difficulty]*domain.DifficultyProgress)
		}
		for _, diff := range domain.Difficulties {
			dp, ok := cp.ByDifficulty[diff]
			if !ok {
				dp = &domain.DifficultyProgress{}
				cp.ByDifficulty[diff] = dp
			}
			dp.TotalQuestions = diffTotals[cat][diff]
		}
	}
	for _, qt := range knownTypes(questions) {
		tp, ok := s.progress.Types[qt]
		if !ok {
			tp = &domain.TypeProgress{Type: qt}
			s.progress.Types[qt] = tp
		}
		tp.TotalQuestions = typeTotals[qt]
	}
	s.progress.LastUpdated = s.now()
	return persist(ctx, s.storage, ProgressKey, s.progress)
}

// UpdateQuestionProgress records one scored submission.
func (s *ProgressStore) UpdateQuestionProgress(ctx context.Context, questionID int, answer domain.Answer, isCorrect bool, timeSpent time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	qp, ok := s.progress.Questions[questionID]
	if !ok {
		qp = &domain.QuestionProgress{QuestionID: questionID}
		s.progress.Questions[questionID] = qp
	}
	if !qp.IsAnswered {
		s.progress.TotalQuestionsAnswered++
	}
	qp.IsAnswered = true
	qp.IsCorrect = isCorrect
	qp.Attempts++
	qp.LastAnswer = answer.Clone()
	qp.LastAttemptAt = now
	if timeSpent > 0 {
		qp.TimeSpentSeconds = int(timeSpent / time.Second)
	}

	if isCorrect {
		s.progress.CurrentStreak++
		if s.progress.CurrentStreak > s.progress.BestStreak {
			s.progress.BestStreak = s.progress.CurrentStreak
		}
	} else {
		s.progress.CurrentStreak = 0
	}
	s.progress.LastUpdated = now
	return persist(ctx, s.storage, ProgressKey, s.progress)
}

// UpdateAggregateProgress recomputes every category and type aggregate from
// the question records joined against the catalog. Records for questions no
// longer in the catalog are skipped.
func (s *ProgressStore) UpdateAggregateProgress(ctx context.Context, questions []domain.Question) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make(map[domain.Category]*domain.CategoryProgress)
	types := make(map[domain.QuestionType]*domain.TypeProgress)
	for _, cat := range knownCategories(questions) {
		cp := &domain.CategoryProgress{
			Category:     cat,
			ByDifficulty: make(map[domain.Difficulty]*domain.DifficultyProgress),
		}
		for _, diff := range domain.Difficulties {
			cp.ByDifficulty[diff] = &domain.DifficultyProgress{}
		}
		categories[cat] = cp
	}
	for _, qt := range knownTypes(questions) {
		types[qt] = &domain.TypeProgress{Type: qt}
	}

	for _, q := range questions {
		cp := categories[q.Category]
		tp := types[q.Type]
		dp, ok := cp.ByDifficulty[q.Difficulty]
		if !ok {
			dp = &domain.DifficultyProgress{}
			cp.ByDifficulty[q.Difficulty] = dp
		}
		cp.TotalQuestions++
		tp.TotalQuestions++
		dp.TotalQuestions++

		qp, ok := s.progress.Questions[q.ID]
		if !ok || !qp.IsAnswered {
			continue
		}
		cp.AnsweredQuestions++
		tp.AnsweredQuestions++
		dp.AnsweredQuestions++
		if qp.IsCorrect {
			cp.CorrectAnswers++
			tp.CorrectAnswers++
			dp.CorrectAnswers++
		}
	}

	totalAnswered, totalCorrect := 0, 0
	for _, cp := range categories {
		cp.SuccessRate = domain.SuccessRate(cp.CorrectAnswers, cp.AnsweredQuestions)
		totalAnswered += cp.AnsweredQuestions
		totalCorrect += cp.CorrectAnswers
	}
	for _, tp := range types {
		tp.SuccessRate = domain.SuccessRate(tp.CorrectAnswers, tp.AnsweredQuestions)
	}

	s.progress.Categories = categories
	s.progress.Types = types
	s.progress.TotalCorrect = totalCorrect
	s.progress.OverallSuccessRate = domain.SuccessRate(totalCorrect, totalAnswered)
	return persist(ctx, s.storage, ProgressKey, s.progress)
}

// CreateSession appends an analytics record and returns its ID.
func (s *ProgressStore) CreateSession(ctx context.Context, mode string, questionIDs []int, filter []string) (string, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := SessionRecord{
		ID:          uuid.NewString(),
		Mode:        mode,
		QuestionIDs: append([]int(nil), questionIDs...),
		Filter:      append([]string(nil), filter...),
		StartedAt:   s.now(),
	}
	s.progress.Sessions = append(s.progress.Sessions, record)
	return record.ID, persist(ctx, s.storage, ProgressKey, s.progress)
}

// UpdateSession updates the counters of an analytics record.
func (s *ProgressStore) UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.progress.Sessions {
		record := &s.progress.Sessions[i]
		if record.ID != sessionID {
			continue
		}
		record.AnsweredCount = update.AnsweredCount
		record.CorrectCount = update.CorrectCount
		if update.Completed && record.CompletedAt == nil {
			now := s.now()
			record.CompletedAt = &now
		}
		return persist(ctx, s.storage, ProgressKey, s.progress)
	}
	return Result{Err: domain.ErrSessionNotFound}
}

// ClearProgress resets to the zero state and removes the durable entry.
func (s *ProgressStore) ClearProgress(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = newProgress()
	return remove(ctx, s.storage, ProgressKey)
}

// QuestionProgress returns a copy of one question's record.
func (s *ProgressStore) QuestionProgress(questionID int) (domain.QuestionProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qp, ok := s.progress.Questions[questionID]
	if !ok {
		return domain.QuestionProgress{}, false
	}
	out := *qp
	out.LastAnswer = qp.LastAnswer.Clone()
	return out, true
}

// Snapshot returns a deep copy safe for callers to read and serialize.
func (s *ProgressStore) Snapshot() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.progress
	out := Progress{
		Questions:              make(map[int]*domain.QuestionProgress, len(p.Questions)),
		Categories:             make(map[domain.Category]*domain.CategoryProgress, len(p.Categories)),
		Types:                  make(map[domain.QuestionType]*domain.TypeProgress, len(p.Types)),
		Sessions:               make([]SessionRecord, len(p.Sessions)),
		TotalQuestionsAnswered: p.TotalQuestionsAnswered,
		TotalCorrect:           p.TotalCorrect,
		OverallSuccessRate:     p.OverallSuccessRate,
		CurrentStreak:          p.CurrentStreak,
		BestStreak:             p.BestStreak,
		LastUpdated:            p.LastUpdated,
	}
	for id, qp := range p.Questions {
		c := *qp
		c.LastAnswer = qp.LastAnswer.Clone()
		out.Questions[id] = &c
	}
	for cat, cp := range p.Categories {
		c := *cp
		c.ByDifficulty = make(map[domain.Difficulty]*domain.DifficultyProgress, len(cp.ByDifficulty))
		for diff, dp := range cp.ByDifficulty {
			d := *dp
			c.ByDifficulty[diff] = &d
		}
		out.Categories[cat] = &c
	}
	for qt, tp := range p.Types {
		c := *tp
		out.Types[qt] = &c
	}
	for i, rec := range p.Sessions {
		rec.QuestionIDs = append([]int(nil), rec.QuestionIDs...)
		rec.Filter = append([]string(nil), rec.Filter...)
		if rec.CompletedAt != nil {
			at := *rec.CompletedAt
			rec.CompletedAt = &at
		}
		out.Sessions[i] = rec
	}
	return out
}

func countCatalog(questions []domain.Question) (map[domain.Category]int, map[domain.Category]map[domain.Difficulty]int, map[domain.QuestionType]int) {
	cats := make(map[domain.Category]int)
	diffs := make(map[domain.Category]map[domain.Difficulty]int)
	types := make(map[domain.QuestionType]int)
	for _, q := range questions {
		cats[q.Category]++
		if diffs[q.Category] == nil {
			diffs[q.Category] = make(map[domain.Difficulty]int)
		}
		diffs[q.Category][q.Difficulty]++
		types[q.Type]++
	}
	return cats, diffs, types
}

// knownCategories is the enumerated set plus anything the catalog carries.
func knownCategories(questions []domain.Question) []domain.Category {
	seen := make(map[domain.Category]struct{}, len(domain.Categories))
	out := make([]domain.Category, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	for _, q := range questions {
		if _, ok := seen[q.Category]; !ok {
			seen[q.Category] = struct{}{}
			out = append(out, q.Category)
		}
	}
	return out
}

func knownTypes(questions []domain.Question) []domain.QuestionType {
	seen := make(map[domain.QuestionType]struct{}, len(domain.QuestionTypes))
	out := make([]domain.QuestionType, 0, len(domain.QuestionTypes))
	for _, qt := range domain.QuestionTypes {
		seen[qt] = struct{}{}
		out = append(out, qt)
	}
	for _, q := range questions {
		if _, ok := seen[q.Type]; !ok {
			seen[q.Type] = struct{}{}
			out = append(out, q.Type)
		}
	}
	return out
}
