package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
	"quiz-practice/internal/remote"
	"quiz-practice/internal/store"
)

// ScoringAPI is the remote answer service. A nil ScoringAPI puts the
// AnswerService in local-only mode.
type ScoringAPI interface {
	SubmitAnswer(ctx context.Context, questionID int, answer domain.Answer, timeSpentSeconds int) (remote.SubmitResult, error)
	GetLatestAnswer(ctx context.Context, questionID int) (remote.LatestAnswer, bool, error)
	CompleteSession(ctx context.Context, sessionID string, answers []remote.SessionAnswer) (remote.SessionReview, error)
}

// Source tells where an outcome's verdict came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCached   Source = "cached"
	SourceLocal    Source = "local"
	SourceDeferred Source = "deferred"
	SourceDraft    Source = "draft"
)

// Outcome is the result of recording one answer.
type Outcome struct {
	QuestionID    int    `json:"questionId"`
	Source        Source `json:"source"`
	Determined    bool   `json:"determined"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation,omitempty"`
	AttemptNumber int    `json:"attemptNumber,omitempty"`
	Persisted     bool   `json:"persisted"`
	Warning       string `json:"warning,omitempty"`
}

// ReviewItem is the per-question line of a results page.
type ReviewItem struct {
	QuestionID    int           `json:"questionId"`
	Answer        domain.Answer `json:"answer"`
	Answered      bool          `json:"answered"`
	Determined    bool          `json:"determined"`
	Correct       bool          `json:"correct"`
	CorrectAnswer string        `json:"correctAnswer,omitempty"`
	Explanation   string        `json:"explanation,omitempty"`
}

// Results summarizes a finished quiz. Determined is false when correctness
// could not be established, e.g. an anonymous batch that failed to submit.
type Results struct {
	Items       []ReviewItem `json:"items"`
	Determined  bool         `json:"determined"`
	Total       int          `json:"total"`
	Answered    int          `json:"answered"`
	Correct     int          `json:"correct"`
	SuccessRate float64      `json:"successRate"`
}

type confirmation struct {
	answer        domain.Answer
	correct       bool
	explanation   string
	attemptNumber int
}

type fetchState struct {
	done chan struct{}
	err  error
}

// AnswerService reconciles locally recorded answers with the remote
// scoring API for one user.
type AnswerService struct {
	api      ScoringAPI
	identity identity.Identity
	stores   Stores

	mu        sync.Mutex
	fetches   map[int]*fetchState
	confirmed map[int]confirmation
}

func NewAnswerService(api ScoringAPI, id identity.Identity, stores Stores) *AnswerService {
	if id == nil {
		id = identity.Anonymous{}
	}
	return &AnswerService{
		api:       api,
		identity:  id,
		stores:    stores,
		fetches:   make(map[int]*fetchState),
		confirmed: make(map[int]confirmation),
	}
}

// Authenticated reports whether answers go to the server one by one.
func (s *AnswerService) Authenticated() bool {
	return s.api != nil && s.identity.IsAuthenticated()
}

// Deferred reports whether answers are batched through the anonymous session.
func (s *AnswerService) Deferred() bool {
	return s.api != nil && !s.identity.IsAuthenticated()
}

// LoadPrevious fetches the user's latest server-side answer for a question.
// Only the first call per question hits the network; concurrent and later
// callers wait for that fetch. A failed fetch may be retried.
func (s *AnswerService) LoadPrevious(ctx context.Context, q domain.Question) (domain.Answer, bool, error) {
	if !s.Authenticated() {
		return domain.Answer{}, false, nil
	}

	s.mu.Lock()
	st, started := s.fetches[q.ID]
	if !started {
		st = &fetchState{done: make(chan struct{})}
		s.fetches[q.ID] = st
	}
	s.mu.Unlock()

	if started {
		select {
		case <-st.done:
		case <-ctx.Done():
			return domain.Answer{}, false, ctx.Err()
		}
		if st.err != nil {
			return domain.Answer{}, false, st.err
		}
		return s.confirmedAnswer(q.ID)
	}

	st.err = s.fetchLatest(ctx, q)
	if st.err != nil {
		s.mu.Lock()
		delete(s.fetches, q.ID)
		s.mu.Unlock()
	}
	close(st.done)
	if st.err != nil {
		return domain.Answer{}, false, st.err
	}
	return s.confirmedAnswer(q.ID)
}

func (s *AnswerService) fetchLatest(ctx context.Context, q domain.Question) error {
	latest, ok, err := s.api.GetLatestAnswer(ctx, q.ID)
	if err != nil {
		return fmt.Errorf("latest answer %d: %w", q.ID, err)
	}
	if !ok {
		return nil
	}
	answer, err := latest.Decode(q.Type)
	if err != nil {
		return fmt.Errorf("latest answer %d: %w", q.ID, err)
	}
	s.mu.Lock()
	if _, exists := s.confirmed[q.ID]; !exists {
		s.confirmed[q.ID] = confirmation{
			answer:        answer,
			correct:       latest.IsCorrect,
			attemptNumber: latest.AttemptNumber,
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *AnswerService) confirmedAnswer(questionID int) (domain.Answer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmed[questionID]
	if !ok {
		return domain.Answer{}, false, nil
	}
	return c.answer.Clone(), true, nil
}

// SaveDraft records an incomplete answer without scoring it.
func (s *AnswerService) SaveDraft(ctx context.Context, q domain.Question, answer domain.Answer) Outcome {
	out := Outcome{QuestionID: q.ID, Source: SourceDraft}
	if s.Deferred() {
		res := s.stores.Sessions.UpdateAnswer(ctx, q.ID, answer, 0)
		out.Persisted = res.Persisted()
		out.Warning = sessionWarning(res)
		return out
	}
	out.Persisted = s.stores.Answers.SaveAnswer(ctx, q.Category, q.ID, answer).Persisted()
	return out
}

// Submit records an answer and, for authenticated users, sends it for
// scoring unless the server already holds an equivalent answer. Progress is
// updated on every call. Remote failures are returned to the caller with
// the local write already applied.
func (s *AnswerService) Submit(ctx context.Context, q domain.Question, answer domain.Answer, timeSpent time.Duration) (Outcome, error) {
	if s.Deferred() {
		res := s.stores.Sessions.UpdateAnswer(ctx, q.ID, answer, timeSpent)
		return Outcome{QuestionID: q.ID, Source: SourceDeferred, Persisted: res.Persisted(), Warning: sessionWarning(res)}, nil
	}

	res := s.stores.Answers.SaveAnswer(ctx, q.Category, q.ID, answer)
	if !s.Authenticated() {
		out := s.ScoreLocally(ctx, q, answer, timeSpent)
		out.Persisted = res.Persisted()
		return out, nil
	}

	out := Outcome{QuestionID: q.ID, Persisted: res.Persisted()}
	if _, _, err := s.LoadPrevious(ctx, q); err != nil {
		log.Printf("answers: previous answer for %d unavailable: %v", q.ID, err)
	}

	s.mu.Lock()
	prev, hasPrev := s.confirmed[q.ID]
	s.mu.Unlock()
	if hasPrev && !domain.HasAnswerChanged(answer, &prev.answer) {
		s.recordProgress(ctx, q.ID, answer, prev.correct, timeSpent)
		out.Source = SourceCached
		out.Determined = true
		out.Correct = prev.correct
		out.Explanation = prev.explanation
		out.AttemptNumber = prev.attemptNumber
		return out, nil
	}

	result, err := s.api.SubmitAnswer(ctx, q.ID, answer, int(timeSpent/time.Second))
	if err != nil {
		return out, fmt.Errorf("submit answer %d: %w", q.ID, err)
	}
	s.mu.Lock()
	s.confirmed[q.ID] = confirmation{
		answer:        answer.Clone(),
		correct:       result.IsCorrect,
		explanation:   result.Explanation,
		attemptNumber: result.AttemptNumber,
	}
	s.mu.Unlock()

	s.recordProgress(ctx, q.ID, answer, result.IsCorrect, timeSpent)
	out.Source = SourceRemote
	out.Determined = true
	out.Correct = result.IsCorrect
	out.Explanation = result.Explanation
	out.AttemptNumber = result.AttemptNumber
	return out, nil
}

// ScoreLocally evaluates an answer against the catalog and records progress.
func (s *AnswerService) ScoreLocally(ctx context.Context, q domain.Question, answer domain.Answer, timeSpent time.Duration) Outcome {
	correct := q.Check(answer)
	s.recordProgress(ctx, q.ID, answer, correct, timeSpent)
	out := Outcome{
		QuestionID:  q.ID,
		Source:      SourceLocal,
		Determined:  true,
		Correct:     correct,
		Explanation: q.Explanation,
	}
	if qp, ok := s.stores.Progress.QuestionProgress(q.ID); ok {
		out.AttemptNumber = qp.Attempts
	}
	return out
}

// sessionWarning explains a deferred answer the session did not take.
func sessionWarning(res store.Result) string {
	if errors.Is(res.Err, domain.ErrSessionNotFound) || errors.Is(res.Err, domain.ErrQuestionNotFound) {
		log.Printf("answers: %v", res.Err)
		return res.Err.Error()
	}
	return ""
}

func (s *AnswerService) recordProgress(ctx context.Context, questionID int, answer domain.Answer, correct bool, timeSpent time.Duration) {
	if res := s.stores.Progress.UpdateQuestionProgress(ctx, questionID, answer, correct, timeSpent); !res.Persisted() {
		log.Printf("answers: progress for %d kept in memory only: %v", questionID, res.Err)
	}
}

// CompleteAnonymous submits the active anonymous session as one batch. On
// success progress is recorded for every reviewed question and the session
// is cleared. On failure the session is kept so the batch can be retried,
// and the returned Results are marked undetermined.
func (s *AnswerService) CompleteAnonymous(ctx context.Context, catalog domain.Catalog) (Results, error) {
	session, ok := s.stores.Sessions.GetCurrentSession(ctx)
	if !ok {
		return Results{}, domain.ErrSessionNotFound
	}

	undetermined := Results{Total: len(session.Questions)}
	batch := make([]remote.SessionAnswer, 0, len(session.Answers))
	for _, q := range session.Questions {
		answer, answered := session.Answers[q.ID]
		answered = answered && domain.IsAnswered(q, answer)
		undetermined.Items = append(undetermined.Items, ReviewItem{QuestionID: q.ID, Answer: answer, Answered: answered})
		if answered {
			undetermined.Answered++
			batch = append(batch, remote.NewSessionAnswer(q.ID, answer, session.TimeSpent[q.ID]))
		}
	}

	if s.api == nil {
		return Results{}, errors.New("complete session: no scoring api configured")
	}
	review, err := s.api.CompleteSession(ctx, session.ID, batch)
	if err != nil {
		return undetermined, fmt.Errorf("complete session %s: %w", session.ID, err)
	}

	verdicts := make(map[int]remote.QuestionReview, len(review.Results))
	for _, r := range review.Results {
		verdicts[r.QuestionID] = r
	}
	results := Results{Determined: true, Total: len(session.Questions)}
	for _, item := range undetermined.Items {
		if v, ok := verdicts[item.QuestionID]; ok {
			item.Determined = true
			item.Correct = v.IsCorrect
			item.CorrectAnswer = v.CorrectAnswer
			item.Explanation = v.Explanation
			if item.Answered {
				elapsed := time.Duration(session.TimeSpent[item.QuestionID]) * time.Second
				s.recordProgress(ctx, item.QuestionID, item.Answer, v.IsCorrect, elapsed)
			}
		} else if q, found := catalog.Find(item.QuestionID); found {
			item.Explanation = q.Explanation
		}
		if item.Answered {
			results.Answered++
			if item.Correct {
				results.Correct++
			}
		}
		results.Items = append(results.Items, item)
	}
	results.SuccessRate = domain.SuccessRate(results.Correct, results.Answered)

	if res := s.stores.Sessions.ClearSession(ctx); !res.Persisted() {
		log.Printf("answers: clear session %s: %v", session.ID, res.Err)
	}
	return results, nil
}
