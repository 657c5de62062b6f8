// Package backend is the HTTP client for the learning platform's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/platform/flexjson"
	"github.com/p-n-ai/pai-learn/internal/quiz"
	"github.com/p-n-ai/pai-learn/internal/scenario"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// ErrorCode returns the backend's machine-readable error code.
func (e *APIError) ErrorCode() string { return e.Code }

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionInfo describes the learner's quiz attempt.
type SessionInfo struct {
	ID     flexjson.String `json:"id"`
	QuizID flexjson.String `json:"quizId"`
	Title  string          `json:"title"`
	Status string          `json:"status"`
}

// QuizSession is the reply of the quiz session endpoint.
type QuizSession struct {
	Session   SessionInfo     `json:"quizSession"`
	Questions []quiz.Question `json:"questions"`
	StartedAt string          `json:"startedAt"`
}

// FetchQuizSession loads the active attempt and its questions.
func (c *Client) FetchQuizSession(ctx context.Context, quizID string) (QuizSession, error) {
	var out QuizSession
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID)+"/session", nil, nil, &out); err != nil {
		return QuizSession{}, fmt.Errorf("fetch quiz session: %w", err)
	}
	return out, nil
}

// QuizQuestions returns the questions of the active quiz attempt.
func (c *Client) QuizQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	sess, err := c.FetchQuizSession(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return sess.Questions, nil
}

// SubmitQuiz posts normalized answers. The idempotency key, when set, is sent
// as the Idempotency-Key header.
func (c *Client) SubmitQuiz(ctx context.Context, quizID string, req quiz.SubmitRequest) (quiz.SubmitResponse, error) {
	headers := http.Header{}
	if req.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", req.IdempotencyKey)
	}

	var raw map[string]json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/submit", headers, req, &raw); err != nil {
		return quiz.SubmitResponse{}, err
	}

	resp := quiz.SubmitResponse{Extra: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "score" {
			var score *float64
			if err := json.Unmarshal(v, &score); err == nil {
				resp.Score = score
			}
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			resp.Extra[k] = val
		}
	}
	return resp, nil
}

// GetSpecificScenario fetches a scenario, validates it against the wire
// schema and maps it to the internal model.
func (c *Client) GetSpecificScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/scenarios/"+url.PathEscape(id), nil, nil, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return scenario.Scenario{}, scenario.ErrNotFound
		}
		return scenario.Scenario{}, fmt.Errorf("get scenario: %w", err)
	}
	return scenario.DecodeWire(id, raw)
}

// GetScenario implements scenario.Source.
func (c *Client) GetScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	return c.GetSpecificScenario(ctx, id)
}

// UnlockResult is the reply of the unlock endpoint.
type UnlockResult struct {
	Unlocked         bool `json:"unlocked"`
	RemainingCredits int  `json:"remainingCredits"`
}

// UnlockContent spends a credit to unlock a piece of content.
func (c *Client) UnlockContent(ctx context.Context, contentID string) (UnlockResult, error) {
	var out UnlockResult
	if err := c.do(ctx, http.MethodPost, "/content/"+url.PathEscape(contentID)+"/unlock", nil, struct{}{}, &out); err != nil {
		return UnlockResult{}, fmt.Errorf("unlock content: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError reads {code, message}, also accepting it nested under "error".
func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code    flexjson.String `json:"code"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = string(body.Code)
		apiErr.Message = body.Message
		if len(body.Error) > 0 && apiErr.Code == "" {
			var nested struct {
				Code    flexjson.String `json:"code"`
				Message string          `json:"message"`
			}
			if json.Unmarshal(body.Error, &nested) == nil {
				apiErr.Code = string(nested.Code)
				apiErr.Message = nested.Message
			} else {
				var msg string
				if json.Unmarshal(body.Error, &msg) == nil && apiErr.Message == "" {
					apiErr.Message = msg
				}
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
