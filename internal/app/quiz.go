package app

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"quiz-practice/internal/domain"
	"quiz-practice/internal/remote"
	"quiz-practice/internal/store"
)

type State string

const (
	StateHome    State = "home"
	StateQuiz    State = "quiz"
	StateResults State = "results"
)

// FilterMode selects how the catalog is narrowed when a quiz starts.
type FilterMode string

const (
	ModeCategory FilterMode = "category"
	ModeType     FilterMode = "type"
)

// Config is the filter chosen on the home screen.
type Config struct {
	Mode       FilterMode            `json:"mode"`
	Categories []domain.Category     `json:"categories,omitempty"`
	Types      []domain.QuestionType `json:"types,omitempty"`
}

func (c Config) filter() []string {
	var out []string
	switch c.Mode {
	case ModeCategory:
		for _, cat := range c.Categories {
			out = append(out, string(cat))
		}
	case ModeType:
		for _, qt := range c.Types {
			out = append(out, string(qt))
		}
	}
	return out
}

// View is everything a renderer needs for the current screen.
type View struct {
	State         State            `json:"state"`
	Config        Config           `json:"config"`
	Index         int              `json:"index"`
	Total         int              `json:"total"`
	Question      *domain.Question `json:"question,omitempty"`
	Answer        *domain.Answer   `json:"answer,omitempty"`
	Outcome       *Outcome         `json:"outcome,omitempty"`
	AnsweredCount int              `json:"answeredCount"`
	CanPrev       bool             `json:"canPrev"`
	CanNext       bool             `json:"canNext"`
	CanFinish     bool             `json:"canFinish"`
	NoMatches     bool             `json:"noMatches"`
	Results       *Results         `json:"results,omitempty"`
}

// Quiz drives one user through home, quiz and results.
type Quiz struct {
	service    *AnswerService
	collection domain.Collection
	catalog    domain.Catalog
	now        func() time.Time

	mu         sync.Mutex
	state      State
	config     Config
	questions  domain.Catalog
	index      int
	answers    map[int]domain.Answer
	outcomes   map[int]Outcome
	pending    map[int]int
	run        int
	shownAt    time.Time
	analyticID string
	results    *Results

	release   func()
	closeOnce sync.Once
}

func NewQuiz(service *AnswerService, collection domain.Collection) *Quiz {
	return NewQuizWithClock(service, collection, time.Now)
}

// NewQuizWithClock is used by tests to control time spent per question.
func NewQuizWithClock(service *AnswerService, collection domain.Collection, now func() time.Time) *Quiz {
	return &Quiz{
		service:    service,
		collection: collection,
		catalog:    domain.Catalog(collection.Questions),
		now:        now,
		state:      StateHome,
		answers:    make(map[int]domain.Answer),
		outcomes:   make(map[int]Outcome),
		pending:    make(map[int]int),
	}
}

// Close releases the quiz's hold on its profile stores. Submissions still
// in flight complete against them.
func (q *Quiz) Close() {
	q.closeOnce.Do(func() {
		if q.release != nil {
			q.release()
		}
	})
}

// Start filters the catalog and enters the quiz. An empty selection stays
// in the quiz state with NoMatches set.
func (q *Quiz) Start(ctx context.Context, cfg Config) (View, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateHome {
		return q.viewLocked(), domain.ErrInvalidState
	}

	var selected domain.Catalog
	switch cfg.Mode {
	case ModeCategory:
		selected = q.catalog.ByCategories(cfg.Categories)
	case ModeType:
		selected = q.catalog.ByTypes(cfg.Types)
	default:
		return q.viewLocked(), fmt.Errorf("%w: unknown filter mode %q", domain.ErrInvalidState, cfg.Mode)
	}

	if res := q.service.stores.Progress.InitializeProgress(ctx, q.catalog); !res.Persisted() {
		log.Printf("quiz: initialize progress: %v", res.Err)
	}

	q.config = cfg
	q.questions = selected
	q.state = StateQuiz
	q.begin(ctx, false)
	return q.viewLocked(), nil
}

// begin resets per-run state. Unless fresh, answers are seeded from
// durable storage.
func (q *Quiz) begin(ctx context.Context, fresh bool) {
	q.run++
	q.index = 0
	q.answers = make(map[int]domain.Answer)
	q.outcomes = make(map[int]Outcome)
	q.pending = make(map[int]int)
	q.results = nil
	q.shownAt = q.now()
	if len(q.questions) == 0 {
		return
	}

	switch {
	case q.service.Deferred():
		q.seedFromSession(ctx, fresh)
	case !fresh:
		q.seedFromAnswerStore()
	}

	id, res := q.service.stores.Progress.CreateSession(ctx, string(q.config.Mode), q.questions.IDs(), q.config.filter())
	if !res.Persisted() {
		log.Printf("quiz: record session: %v", res.Err)
	}
	q.analyticID = id
}

func (q *Quiz) seedFromAnswerStore() {
	byCategory := make(map[domain.Category][]int)
	for _, question := range q.questions {
		byCategory[question.Category] = append(byCategory[question.Category], question.ID)
	}
	for cat, ids := range byCategory {
		for id, answer := range q.service.stores.Answers.GetAnswersForQuestions(cat, ids) {
			q.answers[id] = answer
		}
	}
}

// seedFromSession resumes a live anonymous session over the same questions
// or starts a new one.
func (q *Quiz) seedFromSession(ctx context.Context, fresh bool) {
	sessions := q.service.stores.Sessions
	if session, ok := sessions.GetCurrentSession(ctx); ok && !fresh && slices.Equal(session.QuestionIDs(), q.questions.IDs()) {
		for id, answer := range session.Answers {
			q.answers[id] = answer
		}
		return
	}
	if _, res := sessions.CreateSession(ctx, q.collection.ID, q.collection.Name, q.questions); !res.Persisted() {
		log.Printf("quiz: create session: %v", res.Err)
	}
}

// Answer records the answer for the current question. See AnswerQuestion.
func (q *Quiz) Answer(ctx context.Context, answer domain.Answer) (Outcome, error) {
	q.mu.Lock()
	question, err := q.currentLocked()
	if err != nil {
		q.mu.Unlock()
		return Outcome{}, err
	}
	return q.answerLocked(ctx, question, answer)
}

// AnswerQuestion records an answer for a question of the running quiz,
// current or not. The network round trip runs without holding the quiz, so
// navigation stays responsive and a submission for a question the user has
// left still completes and updates the stores. Transient remote failures
// fall back to local scoring with a warning; other remote errors are
// returned after the local save.
func (q *Quiz) AnswerQuestion(ctx context.Context, questionID int, answer domain.Answer) (Outcome, error) {
	q.mu.Lock()
	if _, err := q.currentLocked(); err != nil {
		q.mu.Unlock()
		return Outcome{}, err
	}
	question, ok := q.questions.Find(questionID)
	if !ok {
		q.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionID)
	}
	return q.answerLocked(ctx, question, answer)
}

// answerLocked is entered with q.mu held and releases it.
func (q *Quiz) answerLocked(ctx context.Context, question domain.Question, answer domain.Answer) (Outcome, error) {
	if question.Type == domain.TypeMultipleChoice && answer.Kind != domain.KindMulti {
		q.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: question %d expects selected options", domain.ErrInvalidAnswer, question.ID)
	}
	q.answers[question.ID] = answer.Clone()
	delete(q.outcomes, question.ID)
	q.pending[question.ID]++
	run, seq := q.run, q.pending[question.ID]
	var timeSpent time.Duration
	if q.questions[q.index].ID == question.ID {
		timeSpent = q.now().Sub(q.shownAt)
	}
	q.mu.Unlock()

	out, err := q.record(ctx, question, answer, timeSpent)

	q.mu.Lock()
	defer q.mu.Unlock()
	// a later edit or a restart supersedes this outcome
	if err == nil && out.Source != SourceDraft && q.run == run && q.pending[question.ID] == seq {
		q.outcomes[question.ID] = out
	}
	return out, err
}

func (q *Quiz) record(ctx context.Context, question domain.Question, answer domain.Answer, timeSpent time.Duration) (Outcome, error) {
	if !domain.IsAnswered(question, answer) {
		return q.service.SaveDraft(ctx, question, answer), nil
	}
	out, err := q.service.Submit(ctx, question, answer, timeSpent)
	if err == nil {
		return out, nil
	}
	if !remote.IsTransient(err) {
		log.Printf("quiz: %v", err)
		return out, err
	}
	log.Printf("quiz: %v; scoring locally", err)
	persisted := out.Persisted
	out = q.service.ScoreLocally(ctx, question, answer, timeSpent)
	out.Persisted = persisted
	out.Warning = err.Error()
	return out, nil
}

func (q *Quiz) Next() (View, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.currentLocked(); err != nil {
		return q.viewLocked(), err
	}
	if q.index < len(q.questions)-1 {
		q.index++
		q.shownAt = q.now()
	}
	return q.viewLocked(), nil
}

func (q *Quiz) Prev() (View, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.currentLocked(); err != nil {
		return q.viewLocked(), err
	}
	if q.index > 0 {
		q.index--
		q.shownAt = q.now()
	}
	return q.viewLocked(), nil
}

// Finish moves to results. Without early, the last question must be the
// current one and answered.
func (q *Quiz) Finish(ctx context.Context, early bool) (View, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	last, err := q.currentLocked()
	if err != nil {
		return q.viewLocked(), err
	}
	if !early {
		if q.index != len(q.questions)-1 || !domain.IsAnswered(last, q.answers[last.ID]) {
			return q.viewLocked(), domain.ErrNotAnswered
		}
	}

	var results Results
	if q.service.Deferred() {
		if !q.service.stores.Sessions.IsComplete(ctx) {
			log.Printf("quiz: completing partial anonymous session for %s", q.collection.ID)
		}
		results, err = q.service.CompleteAnonymous(ctx, q.catalog)
		if err != nil {
			log.Printf("quiz: %v", err)
			results = q.undeterminedResults()
		}
	} else {
		results = q.localResults()
	}

	if res := q.service.stores.Progress.UpdateAggregateProgress(ctx, q.catalog); !res.Persisted() {
		log.Printf("quiz: aggregate progress: %v", res.Err)
	}
	if q.analyticID != "" {
		update := store.SessionUpdate{AnsweredCount: results.Answered, CorrectCount: results.Correct, Completed: true}
		if res := q.service.stores.Progress.UpdateSession(ctx, q.analyticID, update); !res.Persisted() {
			log.Printf("quiz: update session %s: %v", q.analyticID, res.Err)
		}
	}

	q.results = &results
	q.state = StateResults
	return q.viewLocked(), nil
}

func (q *Quiz) localResults() Results {
	results := Results{Determined: true, Total: len(q.questions)}
	for _, question := range q.questions {
		answer, ok := q.answers[question.ID]
		item := ReviewItem{QuestionID: question.ID, Answer: answer, Explanation: question.Explanation}
		item.Answered = ok && domain.IsAnswered(question, answer)
		if out, scored := q.outcomes[question.ID]; scored && item.Answered {
			item.Determined = out.Determined
			item.Correct = out.Correct
			if out.Explanation != "" {
				item.Explanation = out.Explanation
			}
		} else if item.Answered {
			// restored from storage and not re-submitted in this run
			item.Determined = true
			item.Correct = question.Check(answer)
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
	return results
}

func (q *Quiz) undeterminedResults() Results {
	results := Results{Total: len(q.questions)}
	for _, question := range q.questions {
		answer, ok := q.answers[question.ID]
		item := ReviewItem{QuestionID: question.ID, Answer: answer}
		item.Answered = ok && domain.IsAnswered(question, answer)
		if item.Answered {
			results.Answered++
		}
		results.Items = append(results.Items, item)
	}
	return results
}

// Retry restarts the same question set with empty in-memory answers.
// Durable stores are left untouched.
func (q *Quiz) Retry(ctx context.Context) (View, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == StateHome {
		return q.viewLocked(), domain.ErrInvalidState
	}
	q.state = StateQuiz
	q.begin(ctx, true)
	return q.viewLocked(), nil
}

// GoHome drops all in-memory quiz state.
func (q *Quiz) GoHome() View {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = StateHome
	q.config = Config{}
	q.questions = nil
	q.index = 0
	q.answers = make(map[int]domain.Answer)
	q.outcomes = make(map[int]Outcome)
	q.pending = make(map[int]int)
	q.run++
	q.results = nil
	q.analyticID = ""
	return q.viewLocked()
}

func (q *Quiz) View() View {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.viewLocked()
}

// Question looks up a question of the running selection.
func (q *Quiz) Question(questionID int) (domain.Question, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateQuiz {
		return domain.Question{}, false
	}
	return q.questions.Find(questionID)
}

func (q *Quiz) currentLocked() (domain.Question, error) {
	if q.state != StateQuiz {
		return domain.Question{}, domain.ErrInvalidState
	}
	if len(q.questions) == 0 {
		return domain.Question{}, domain.ErrNoQuestions
	}
	return q.questions[q.index], nil
}

func (q *Quiz) viewLocked() View {
	v := View{State: q.state, Config: q.config, Index: q.index, Total: len(q.questions), Results: q.results}
	for _, question := range q.questions {
		if answer, ok := q.answers[question.ID]; ok && domain.IsAnswered(question, answer) {
			v.AnsweredCount++
		}
	}
	if q.state != StateQuiz {
		return v
	}
	if len(q.questions) == 0 {
		v.NoMatches = true
		return v
	}
	question := q.questions[q.index]
	v.Question = &question
	if answer, ok := q.answers[question.ID]; ok {
		a := answer.Clone()
		v.Answer = &a
	}
	if out, ok := q.outcomes[question.ID]; ok {
		v.Outcome = &out
	}
	v.CanPrev = q.index > 0
	v.CanNext = q.index < len(q.questions)-1
	v.CanFinish = q.index == len(q.questions)-1
	return v
}
