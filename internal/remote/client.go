package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"quiz-practice/internal/domain"
)

// DefaultTimeout bounds every request to the scoring API.
const DefaultTimeout = 10 * time.Second

// TokenSource supplies the bearer token for the Authorization header.
type TokenSource interface {
	Token() string
}

// Client talks to the remote scoring API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
	tokens  TokenSource
}

type Option func(*Client)

// WithHTTPClient swaps the underlying fasthttp client (tests dial in-memory).
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:                "quiz-practice",
			MaxIdleConnDuration: time.Minute,
		},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokens returns a client sharing the connection pool but sending a
// different user's token.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// SubmitResult is the server's verdict on one submission.
type SubmitResult struct {
	Success       bool      `json:"success"`
	IsCorrect     bool      `json:"isCorrect"`
	Explanation   string    `json:"explanation"`
	AttemptNumber int       `json:"attemptNumber"`
	AnswerID      string    `json:"answerId"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// LatestAnswer is the most recent stored answer for a question. Answer is
// still in wire format; use Decode to get a typed value.
type LatestAnswer struct {
	QuestionID    int       `json:"questionId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	AttemptNumber int       `json:"attemptNumber"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

func (l LatestAnswer) Decode(qt domain.QuestionType) (domain.Answer, error) {
	return domain.DecodeWire(l.Answer, qt)
}

type submitRequest struct {
	QuestionID       int    `json:"questionId"`
	Answer           string `json:"answer"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SubmitAnswer sends an answer for scoring.
func (c *Client) SubmitAnswer(ctx context.Context, questionID int, answer domain.Answer, timeSpentSeconds int) (SubmitResult, error) {
	var result SubmitResult
	err := c.do(ctx, fasthttp.MethodPost, "/api/answers", submitRequest{
		QuestionID:       questionID,
		Answer:           domain.EncodeWire(answer),
		TimeSpentSeconds: timeSpentSeconds,
	}, &result)
	return result, err
}

// GetLatestAnswer returns the user's most recent answer. A question the user
// never answered is reported as ok=false, not as an error.
func (c *Client) GetLatestAnswer(ctx context.Context, questionID int) (LatestAnswer, bool, error) {
	var latest LatestAnswer
	err := c.do(ctx, fasthttp.MethodGet, fmt.Sprintf("/api/answers/%d/latest", questionID), nil, &latest)
	if IsNotFound(err) {
		return LatestAnswer{}, false, nil
	}
	if err != nil {
		return LatestAnswer{}, false, err
	}
	return latest, true, nil
}

// CollectionSummary describes a collection without its questions.
type CollectionSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QuestionCount int    `json:"questionCount"`
}

type CollectionPage struct {
	Items      []CollectionSummary `json:"items"`
	TotalCount int                 `json:"totalCount"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
}

type QuestionPage struct {
	CollectionName string            `json:"collectionName"`
	Items          []domain.Question `json:"items"`
	TotalCount     int               `json:"totalCount"`
	Page           int               `json:"page"`
	PageSize       int               `json:"pageSize"`
}

// ListCollections returns one page of collections. Pages start at 1.
func (c *Client) ListCollections(ctx context.Context, page, pageSize int) (CollectionPage, error) {
	var out CollectionPage
	err := c.do(ctx, fasthttp.MethodGet, "/api/collections"+pageQuery(page, pageSize), nil, &out)
	return out, err
}

// ListQuestions returns one page of a collection's questions.
func (c *Client) ListQuestions(ctx context.Context, collectionID string, page, pageSize int) (QuestionPage, error) {
	var out QuestionPage
	path := "/api/collections/" + url.PathEscape(collectionID) + "/questions" + pageQuery(page, pageSize)
	err := c.do(ctx, fasthttp.MethodGet, path, nil, &out)
	return out, err
}

// SessionAnswer is one entry of an anonymous session batch.
type SessionAnswer struct {
	QuestionID       int    `json:"questionId"`
	Answer           string `json:"answer"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// NewSessionAnswer encodes a typed answer for the completion batch.
func NewSessionAnswer(questionID int, answer domain.Answer, timeSpentSeconds int) SessionAnswer {
	return SessionAnswer{QuestionID: questionID, Answer: domain.EncodeWire(answer), TimeSpentSeconds: timeSpentSeconds}
}

type QuestionReview struct {
	QuestionID    int    `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

type SessionReview struct {
	SessionID      string           `json:"sessionId"`
	Score          float64          `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	Results        []QuestionReview `json:"results"`
}

type completeRequest struct {
	Answers []SessionAnswer `json:"answers"`
}

// CompleteSession submits an anonymous session's answers in one batch and
// returns the full review.
func (c *Client) CompleteSession(ctx context.Context, sessionID string, answers []SessionAnswer) (SessionReview, error) {
	var review SessionReview
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/complete"
	err := c.do(ctx, fasthttp.MethodPost, path, completeRequest{Answers: answers}, &review)
	return review, err
}

type errorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return &APIError{Message: "request not sent", cause: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(data)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return &APIError{Message: method + " " + path, cause: ErrTimeout}
		}
		return &APIError{Message: method + " " + path, cause: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status}
		var eb errorBody
		if err := json.Unmarshal(resp.Body(), &eb); err == nil {
			apiErr.Message = eb.Message
			apiErr.Errors = eb.Errors
		}
		if apiErr.Message == "" {
			apiErr.Message = fasthttp.StatusMessage(status)
		}
		return apiErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{StatusCode: status, Message: "decode response", cause: err}
	}
	return nil
}

func pageQuery(page, pageSize int) string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return fmt.Sprintf("?page=%d&pageSize=%d", page, pageSize)
}
