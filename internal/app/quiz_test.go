package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-practice/internal/app"
	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
	"quiz-practice/internal/remote"
)

func testCollection() domain.Collection {
	return domain.Collection{ID: "csharp", Name: "C# fundamentals", Questions: testCatalog()}
}

func TestQuizCategoryFlow(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	quiz := app.NewQuizWithClock(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection(), func() time.Time { return now })

	view, err := quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.State != app.StateQuiz || view.Total != 2 || view.Question.ID != 1 || view.CanPrev || view.CanFinish {
		t.Fatalf("unexpected first view %+v", view)
	}

	now = now.Add(7 * time.Second)
	out, err := quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
	if err != nil || !out.Correct || out.Source != app.SourceLocal {
		t.Fatalf("unexpected outcome %+v err=%v", out, err)
	}
	if qp, _ := stores.Progress.QuestionProgress(1); qp.TimeSpentSeconds != 7 {
		t.Fatalf("expected 7 seconds spent, got %d", qp.TimeSpentSeconds)
	}

	if _, err := quiz.Finish(ctx, false); !errors.Is(err, domain.ErrNotAnswered) {
		t.Fatalf("finish before the last question must fail, got %v", err)
	}

	view, _ = quiz.Next()
	if view.Index != 1 || !view.CanFinish || !view.CanPrev || view.CanNext {
		t.Fatalf("unexpected last view %+v", view)
	}
	if view, _ = quiz.Next(); view.Index != 1 {
		t.Fatalf("next on the last question must not move, got %d", view.Index)
	}
	if _, err := quiz.Finish(ctx, false); !errors.Is(err, domain.ErrNotAnswered) {
		t.Fatalf("finish with unanswered last question must fail, got %v", err)
	}
	quiz.Answer(ctx, domain.TextAnswer("false"))

	view, err = quiz.Finish(ctx, false)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if view.State != app.StateResults || view.Results == nil {
		t.Fatalf("expected results view, got %+v", view)
	}
	if r := view.Results; r.Answered != 2 || r.Correct != 1 || r.SuccessRate != 50 || !r.Determined {
		t.Fatalf("unexpected results %+v", r)
	}

	snap := stores.Progress.Snapshot()
	if oop := snap.Categories[domain.CategoryOOP]; oop.AnsweredQuestions != 2 || oop.CorrectAnswers != 1 {
		t.Fatalf("aggregates not recomputed: %+v", oop)
	}
	if len(snap.Sessions) != 1 || snap.Sessions[0].CompletedAt == nil || snap.Sessions[0].Mode != "category" {
		t.Fatalf("expected completed analytics session, got %+v", snap.Sessions)
	}
}

func TestQuizEmptyFilterShowsNoMatches(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())

	view, err := quiz.Start(ctx, app.Config{Mode: app.ModeType})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.State != app.StateQuiz || !view.NoMatches || view.Question != nil {
		t.Fatalf("expected no-matches view, got %+v", view)
	}
	if _, err := quiz.Answer(ctx, domain.TextAnswer("x")); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if _, err := quiz.Finish(ctx, true); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if view := quiz.GoHome(); view.State != app.StateHome {
		t.Fatalf("expected home, got %s", view.State)
	}
}

func TestQuizTypeFilterAndEarlyFinish(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())

	view, err := quiz.Start(ctx, app.Config{Mode: app.ModeType, Types: []domain.QuestionType{domain.TypeFillInBlank, domain.TypeOutputPrediction}})
	if err != nil || view.Total != 2 {
		t.Fatalf("unexpected start view %+v err=%v", view, err)
	}
	quiz.Answer(ctx, domain.TextAnswer("```csharp\nWhere\n```"))

	view, err = quiz.Finish(ctx, true)
	if err != nil {
		t.Fatalf("early finish: %v", err)
	}
	if r := view.Results; r.Total != 2 || r.Answered != 1 || r.Correct != 1 || r.SuccessRate != 100 {
		t.Fatalf("unexpected results %+v", r)
	}
}

func TestQuizRejectsWrongAnswerKind(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	if _, err := quiz.Answer(ctx, domain.TextAnswer("B")); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestQuizDraftIsNotScored(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryLINQ}})

	out, err := quiz.Answer(ctx, domain.TextAnswer("items.___(x => x > 1)"))
	if err != nil || out.Source != app.SourceDraft || out.Determined {
		t.Fatalf("unchanged template must be a draft, got %+v err=%v", out, err)
	}
	if _, ok := stores.Progress.QuestionProgress(3); ok {
		t.Fatalf("drafts must not count as attempts")
	}
	if _, ok := stores.Answers.GetAnswer(domain.CategoryLINQ, 3); !ok {
		t.Fatalf("drafts must be saved locally")
	}
}

func TestQuizSeedsSavedAnswersAndRetryClears(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	stores.Answers.SaveAnswer(ctx, domain.CategoryOOP, 2, domain.TextAnswer("true"))
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())

	view, _ := quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})
	if view.AnsweredCount != 1 {
		t.Fatalf("expected saved answer seeded, got %d answered", view.AnsweredCount)
	}
	view, _ = quiz.Next()
	if view.Answer == nil || view.Answer.Text != "true" {
		t.Fatalf("expected saved answer shown, got %+v", view.Answer)
	}

	view, err := quiz.Retry(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if view.State != app.StateQuiz || view.Index != 0 || view.AnsweredCount != 0 {
		t.Fatalf("retry must start over with no answers, got %+v", view)
	}
	if _, ok := stores.Answers.GetAnswer(domain.CategoryOOP, 2); !ok {
		t.Fatalf("retry must not clear durable answers")
	}
	if _, err := quiz.Start(ctx, app.Config{Mode: app.ModeCategory}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("start outside home must fail, got %v", err)
	}
}

func TestQuizFallsBackToLocalScoring(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()
	api := newFakeAPI(catalog)
	api.submitErr = &remote.APIError{StatusCode: 502, Message: "bad gateway"}
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(api, signedIn, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	out, err := quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if out.Source != app.SourceLocal || !out.Correct || out.Warning == "" || !out.Persisted {
		t.Fatalf("expected local fallback with warning, got %+v", out)
	}
	if qp, _ := stores.Progress.QuestionProgress(1); qp.Attempts != 1 {
		t.Fatalf("fallback must record exactly one attempt, got %d", qp.Attempts)
	}
}

func TestQuizAnonymousSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()
	api := newFakeAPI(catalog)
	stores, _ := newStores(t)
	service := app.NewAnswerService(api, identity.Anonymous{}, stores)
	cfg := app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}}

	quiz := app.NewQuiz(service, testCollection())
	quiz.Start(ctx, cfg)
	quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
	session, ok := stores.Sessions.GetCurrentSession(ctx)
	if !ok || len(session.Answers) != 1 || session.CollectionID != "csharp" {
		t.Fatalf("expected answer in anonymous session, got %+v ok=%v", session, ok)
	}

	// a reload resumes the same session
	resumed := app.NewQuiz(app.NewAnswerService(api, identity.Anonymous{}, stores), testCollection())
	view, _ := resumed.Start(ctx, cfg)
	if view.AnsweredCount != 1 {
		t.Fatalf("expected resumed answers, got %+v", view)
	}
	if again, _ := stores.Sessions.GetCurrentSession(ctx); again.ID != session.ID {
		t.Fatalf("expected the same session to be resumed")
	}

	resumed.Next()
	resumed.Answer(ctx, domain.TextAnswer("true"))
	view, err := resumed.Finish(ctx, false)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if r := view.Results; !r.Determined || r.Correct != 2 || r.SuccessRate != 100 {
		t.Fatalf("unexpected results %+v", r)
	}
	if _, ok := stores.Sessions.GetCurrentSession(ctx); ok {
		t.Fatalf("session must be cleared after completion")
	}
	if api.submitCount() != 0 || len(api.batches) != 1 {
		t.Fatalf("anonymous quiz must submit exactly one batch")
	}
}

func TestQuizAnonymousCompletionFailure(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog()
	api := newFakeAPI(catalog)
	api.completeErr = errors.New("offline")
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(api, identity.Anonymous{}, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})
	quiz.Answer(ctx, domain.MultiAnswer("B"))

	view, err := quiz.Finish(ctx, true)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if view.State != app.StateResults || view.Results.Determined || view.Results.Answered != 1 {
		t.Fatalf("expected undetermined results, got %+v", view.Results)
	}
}

// gatedAPI holds every submission until release is closed.
type gatedAPI struct {
	*fakeAPI
	started chan int
	release chan struct{}
}

func (g *gatedAPI) SubmitAnswer(ctx context.Context, questionID int, answer domain.Answer, timeSpentSeconds int) (remote.SubmitResult, error) {
	g.started <- questionID
	<-g.release
	return g.fakeAPI.SubmitAnswer(ctx, questionID, answer, timeSpentSeconds)
}

func TestQuizNavigatesWhileSubmissionInFlight(t *testing.T) {
	ctx := context.Background()
	api := &gatedAPI{fakeAPI: newFakeAPI(testCatalog()), started: make(chan int, 1), release: make(chan struct{})}
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(api, signedIn, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	type answered struct {
		out app.Outcome
		err error
	}
	done := make(chan answered, 1)
	go func() {
		out, err := quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
		done <- answered{out, err}
	}()
	if id := <-api.started; id != 1 {
		t.Fatalf("expected submission for question 1, got %d", id)
	}

	moved := make(chan app.View, 1)
	go func() {
		view, _ := quiz.Next()
		moved <- view
	}()
	select {
	case view := <-moved:
		if view.Index != 1 || view.Outcome != nil {
			t.Fatalf("unexpected view after next %+v", view)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("next blocked while a submission was in flight")
	}
	if view := quiz.View(); view.Question.ID != 2 {
		t.Fatalf("view must stay responsive, got %+v", view)
	}

	close(api.release)
	res := <-done
	if res.err != nil || res.out.QuestionID != 1 || !res.out.Correct || res.out.Source != app.SourceRemote {
		t.Fatalf("unexpected background outcome %+v err=%v", res.out, res.err)
	}
	if qp, ok := stores.Progress.QuestionProgress(1); !ok || qp.Attempts != 1 {
		t.Fatalf("background submission must update progress, got %+v", qp)
	}
	view, _ := quiz.Prev()
	if view.Outcome == nil || view.Outcome.QuestionID != 1 || !view.Outcome.Correct {
		t.Fatalf("outcome must be kept for the question it belongs to, got %+v", view.Outcome)
	}
}

func TestQuizAnswerQuestionByID(t *testing.T) {
	ctx := context.Background()
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(nil, identity.Anonymous{}, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	out, err := quiz.AnswerQuestion(ctx, 2, domain.TextAnswer("true"))
	if err != nil || out.QuestionID != 2 || !out.Correct {
		t.Fatalf("unexpected outcome %+v err=%v", out, err)
	}
	if view := quiz.View(); view.Index != 0 || view.AnsweredCount != 1 {
		t.Fatalf("answering another question must not move the quiz, got %+v", view)
	}
	if _, err := quiz.AnswerQuestion(ctx, 3, domain.TextAnswer("Where")); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("question outside the selection must be rejected, got %v", err)
	}
}

func TestQuizSurfacesValidationErrors(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testCatalog())
	api.submitErr = &remote.APIError{StatusCode: 422, Message: "validation failed", Errors: []string{"answer too long"}}
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(api, signedIn, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	out, err := quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 422 {
		t.Fatalf("expected the 422 to reach the caller, got %v", err)
	}
	if !out.Persisted || out.Determined {
		t.Fatalf("expected saved but unscored outcome, got %+v", out)
	}
	if _, ok := stores.Answers.GetAnswer(domain.CategoryOOP, 1); !ok {
		t.Fatalf("answer must be saved locally")
	}
	if _, ok := stores.Progress.QuestionProgress(1); ok {
		t.Fatalf("rejected answers must not be scored locally")
	}
	if view := quiz.View(); view.Outcome != nil {
		t.Fatalf("no outcome expected, got %+v", view.Outcome)
	}
}

func TestQuizAnonymousBatchCarriesElapsedTime(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testCatalog())
	stores, _ := newStores(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	quiz := app.NewQuizWithClock(app.NewAnswerService(api, identity.Anonymous{}, stores), testCollection(), func() time.Time { return now })
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})

	now = now.Add(8 * time.Second)
	quiz.Answer(ctx, domain.MultiAnswer("B", "C"))
	quiz.Next()
	now = now.Add(3 * time.Second)
	quiz.Answer(ctx, domain.TextAnswer("true"))
	if _, err := quiz.Finish(ctx, false); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if len(api.batches) != 1 || len(api.batches[0]) != 2 {
		t.Fatalf("expected one batch of two, got %+v", api.batches)
	}
	spent := map[int]int{}
	for _, a := range api.batches[0] {
		spent[a.QuestionID] = a.TimeSpentSeconds
	}
	if spent[1] != 8 || spent[2] != 3 {
		t.Fatalf("expected elapsed seconds per answer, got %+v", spent)
	}
	if qp, _ := stores.Progress.QuestionProgress(1); qp.TimeSpentSeconds != 8 {
		t.Fatalf("expected progress to keep the elapsed time, got %d", qp.TimeSpentSeconds)
	}
}

func TestQuizExpiredSessionIsReported(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testCatalog())
	stores, _ := newStores(t)
	quiz := app.NewQuiz(app.NewAnswerService(api, identity.Anonymous{}, stores), testCollection())
	quiz.Start(ctx, app.Config{Mode: app.ModeCategory, Categories: []domain.Category{domain.CategoryOOP}})
	stores.Sessions.ClearSession(ctx)

	out, err := quiz.Answer(ctx, domain.MultiAnswer("B"))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if out.Persisted || out.Warning == "" {
		t.Fatalf("answer without a session must not look persisted, got %+v", out)
	}
}
