package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestClient(t *testing.T, backend *fakeBackend) (*Client, LocalStorage) {
	t.Helper()
	keyring.MockInit()
	storage := newKeyringStorage("kaliguru-test")
	return NewClient(backend.URL()+"/", 5*time.Second, storage), storage
}

func TestClient_Login(t *testing.T) {
	backend := newFakeBackend(t)
	client, _ := newTestClient(t, backend)
	ctx := context.Background()

	resp, err := client.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "alice", resp.User.Username)

	req := backend.lastRequest(t, "/api/login")
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = client.Login(ctx, "alice", "nope")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "Invalid credentials", statusErr.Message)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.EqualError(t, err, "server returned 401: Invalid credentials")
}

func TestClient_LoginWithoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	_, err := client.Login(context.Background(), "alice", "secret")
	assert.Error(t, err)
}

func TestClient_ProviderHeaders(t *testing.T) {
	backend := newFakeBackend(t)
	client, storage := newTestClient(t, backend)
	require.NoError(t, storage.SetItem(storageKeyGroq, "g1"))
	require.NoError(t, storage.SetItem(storageKeyDeepSeek, "d1"))

	_, err := client.Me(context.Background(), "sess-1")
	require.NoError(t, err)

	header := backend.lastRequest(t, "/api/me").Header
	assert.Equal(t, "g1", header.Get("X-Groq-API-Key"))
	assert.Empty(t, header.Get("X-Gemini-API-Key"))
	assert.Equal(t, "d1", header.Get("X-Deepseek-API-Key"))
	assert.Equal(t, "Bearer sess-1", header.Get("Authorization"))
	assert.Len(t, header.Get("X-Request-ID"), 36)
}

func TestClient_Me(t *testing.T) {
	backend := newFakeBackend(t)
	client, _ := newTestClient(t, backend)

	user, err := client.Me(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	backend.meStatus = http.StatusUnauthorized
	_, err = client.Me(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_MeWithoutUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0, nil).Me(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_StatusErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(server.URL, 0, nil).Logout(context.Background(), "sess-1")
	assert.EqualError(t, err, "server returned 500")
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_OpenMentorStream(t *testing.T) {
	backend := newFakeBackend(t)
	client, _ := newTestClient(t, backend)

	body, err := client.OpenMentorStream(context.Background(), "sess-1", MentorChatRequest{Message: "hi"})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Contains(t, string(data), "data: [DONE]")

	req := backend.lastRequest(t, "/api/mentor-chat")
	assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))
	assert.JSONEq(t, `{"message":"hi","context":{"level":"","cert":"","weaknesses":[]},"stream":true}`, string(req.Body))

	backend.mentorStatus = http.StatusTooManyRequests
	_, err = client.OpenMentorStream(context.Background(), "sess-1", MentorChatRequest{Message: "hi"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestClient_Assessment(t *testing.T) {
	backend := newFakeBackend(t)
	client, _ := newTestClient(t, backend)
	ctx := context.Background()

	questions, err := client.GenerateQuestions(ctx, "sess-1", "oscp")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.JSONEq(t, `{"mode":"oscp"}`, string(backend.lastRequest(t, "/api/generate-questions").Body))

	backend.evaluation.Weaknesses = nil
	eval, err := client.EvaluateAssessment(ctx, "sess-1", "oscp", questions, map[int]string{1: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Intermediate", eval.Level)
	assert.NotNil(t, eval.Weaknesses)

	roadmap, err := client.GenerateRoadmap(ctx, "sess-1", "Intermediate", nil, "EJPT")
	require.NoError(t, err)
	assert.Equal(t, "Six weeks to eJPT.", roadmap.ExecutiveSummary)
	assert.JSONEq(t, `{"level":"Intermediate","weaknesses":[],"cert":"EJPT"}`, string(backend.lastRequest(t, "/api/generate-roadmap").Body))
}

func TestClient_BaseURL(t *testing.T) {
	client := NewClient("http://example.test///", 0, nil)
	assert.Equal(t, "http://example.test", client.BaseURL())
}
