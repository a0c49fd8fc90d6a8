package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is matched by StatusErrors carrying a 401.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// User is the account record returned by the backend
type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	User      *User  `json:"user"`
}

// ChatContext tells the mentor who it is talking to
type ChatContext struct {
	Level      string   `json:"level"`
	Cert       string   `json:"cert"`
	Weaknesses []string `json:"weaknesses"`
}

// MentorChatRequest is the body of POST /api/mentor-chat
type MentorChatRequest struct {
	Message string      `json:"message"`
	Context ChatContext `json:"context"`
	Stream  bool        `json:"stream"`
}

// Question is one generated assessment question
type Question struct {
	Type          string   `json:"type,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Hint          string   `json:"hint,omitempty"`
	Topic         string   `json:"topic,omitempty"`
}

// Evaluation is the graded result of an assessment
type Evaluation struct {
	Score           float64  `json:"score"`
	Level           string   `json:"level"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	FocusSuggestion string   `json:"focusSuggestion,omitempty"`
}

// Client talks to the KaliGuru backend. Every request carries the provider
// keys found in local storage.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	storage LocalStorage
}

// NewClient creates a backend client. timeout applies to regular requests
// only; mentor streams are bounded by their context.
func NewClient(baseURL string, timeout time.Duration, storage LocalStorage) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		storage: storage,
	}
}

// BaseURL returns the backend address the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path, sessionID string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionID)
	}

	if c.storage != nil {
		for _, key := range providerKeys {
			value, err := c.storage.GetItem(key.StorageKey)
			if err != nil {
				slog.Warn("failed to read provider key", "provider", key.Name, "error", err)
				continue
			}
			if value != "" {
				req.Header.Set(key.Header, value)
			}
		}
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	slog.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start))

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// checkStatus turns a non-2xx response into a *StatusError, using the
// backend's {"error": "..."} body when there is one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		statusErr.Message = body.Error
		if statusErr.Message == "" {
			statusErr.Message = body.Message
		}
	}
	return statusErr
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", "", loginRequest{
		EmailOrUsername: username,
		Password:        password,
	})
	if err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("login response carried no session")
	}
	return &resp, nil
}

// Me returns the user owning the session, or an error matching
// ErrUnauthorized when the session is gone.
func (c *Client) Me(ctx context.Context, sessionID string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/me", sessionID, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &StatusError{StatusCode: http.StatusUnauthorized, Message: "no user for session"}
	}
	return resp.User, nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/logout", sessionID, struct{}{})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// OpenMentorStream starts a streamed mentor reply. The caller owns the
// returned body.
func (c *Client) OpenMentorStream(ctx context.Context, sessionID string, chat MentorChatRequest) (io.ReadCloser, error) {
	if chat.Context.Weaknesses == nil {
		chat.Context.Weaknesses = []string{}
	}
	chat.Stream = true

	req, err := c.newRequest(ctx, http.MethodPost, "/api/mentor-chat", sessionID, chat)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mentor chat request failed: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	slog.Debug("mentor stream opened", "request_id", req.Header.Get("X-Request-ID"))
	return resp.Body, nil
}

// GenerateQuestions fetches a fresh assessment for the learning mode.
func (c *Client) GenerateQuestions(ctx context.Context, sessionID, mode string) ([]Question, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate-questions", sessionID, map[string]string{"mode": mode})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Questions []Question `json:"questions"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// EvaluateAssessment grades answers, keyed by question index.
func (c *Client) EvaluateAssessment(ctx context.Context, sessionID, mode string, questions []Question, answers map[int]string) (*Evaluation, error) {
	keyed := make(map[string]string, len(answers))
	for i, answer := range answers {
		keyed[strconv.Itoa(i)] = answer
	}
	body := struct {
		Answers   map[string]string `json:"answers"`
		Questions []Question        `json:"questions"`
		Mode      string            `json:"mode"`
	}{keyed, questions, mode}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/evaluate-assessment", sessionID, body)
	if err != nil {
		return nil, err
	}
	var eval Evaluation
	if err := c.do(req, &eval); err != nil {
		return nil, err
	}
	if eval.Weaknesses == nil {
		eval.Weaknesses = []string{}
	}
	return &eval, nil
}

// GenerateRoadmap builds a study plan towards cert.
func (c *Client) GenerateRoadmap(ctx context.Context, sessionID, level string, weaknesses []string, cert string) (*Roadmap, error) {
	if weaknesses == nil {
		weaknesses = []string{}
	}
	body := struct {
		Level      string   `json:"level"`
		Weaknesses []string `json:"weaknesses"`
		Cert       string   `json:"cert"`
	}{level, weaknesses, cert}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate-roadmap", sessionID, body)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Roadmap json.RawMessage `json:"roadmap"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return parseRoadmap(resp.Roadmap)
}
