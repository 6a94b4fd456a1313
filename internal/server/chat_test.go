package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calchat/calchat/internal/agent"
)

type fakeAgent struct {
	lastReq agent.TurnRequest
	result  agent.TurnResult
	err     error
	calls   int
}

func (f *fakeAgent) HandleMessage(_ context.Context, req agent.TurnRequest) (agent.TurnResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return agent.TurnResult{}, f.err
	}
	return f.result, nil
}

func newTestChatServer(t *testing.T, fa *fakeAgent) *ChatServer {
	t.Helper()
	s, err := NewChatServer(ChatServerConfig{
		Addr:  ":0",
		Agent: fa,
	})
	require.NoError(t, err)
	return s
}

func postMessage(t *testing.T, handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ai/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewChatServer_Validation(t *testing.T) {
	_, err := NewChatServer(ChatServerConfig{Addr: ":8080"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent")

	_, err = NewChatServer(ChatServerConfig{Agent: &fakeAgent{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen address")
}

func TestHandleMessage_Success(t *testing.T) {
	fa := &fakeAgent{result: agent.TurnResult{
		Reply:          "You have two meetings tomorrow.",
		ConversationID: "conv-42",
	}}
	s := newTestChatServer(t, fa)

	rec := postMessage(t, s.Handler(),
		`{"message":"what's on tomorrow?","timezone":"Europe/Kyiv","conversation_id":"conv-42"}`,
		map[string]string{
			"X-Google-Access-Token": "ya29.token",
			"X-User-Id":             "alice@example.com",
		})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "You have two meetings tomorrow.", resp.Reply)
	assert.Equal(t, "conv-42", resp.ConversationID)

	assert.Equal(t, 1, fa.calls)
	assert.Equal(t, "alice@example.com", fa.lastReq.UserID)
	assert.Equal(t, "conv-42", fa.lastReq.ConversationID)
	assert.Equal(t, "what's on tomorrow?", fa.lastReq.Message)
	assert.Equal(t, "Europe/Kyiv", fa.lastReq.Timezone)
	assert.Equal(t, "ya29.token", fa.lastReq.AccessToken)
}

func TestHandleMessage_DefaultsUserID(t *testing.T) {
	fa := &fakeAgent{result: agent.TurnResult{Reply: "ok"}}
	s := newTestChatServer(t, fa)

	rec := postMessage(t, s.Handler(), `{"message":"hi"}`, map[string]string{
		"X-Google-Access-Token": "tok",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo-user", fa.lastReq.UserID)
}

func TestHandleMessage_BearerToken(t *testing.T) {
	fa := &fakeAgent{result: agent.TurnResult{Reply: "ok"}}
	s := newTestChatServer(t, fa)

	rec := postMessage(t, s.Handler(), `{"message":"hi"}`, map[string]string{
		"Authorization": "Bearer ya29.bearer",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ya29.bearer", fa.lastReq.AccessToken)
}

func TestHandleMessage_DedicatedHeaderWinsOverBearer(t *testing.T) {
	fa := &fakeAgent{result: agent.TurnResult{Reply: "ok"}}
	s := newTestChatServer(t, fa)

	postMessage(t, s.Handler(), `{"message":"hi"}`, map[string]string{
		"X-Google-Access-Token": "header-token",
		"Authorization":         "Bearer other",
	})

	assert.Equal(t, "header-token", fa.lastReq.AccessToken)
}

func TestHandleMessage_MissingTokenShortCircuits(t *testing.T) {
	fa := &fakeAgent{}
	s := newTestChatServer(t, fa)

	rec := postMessage(t, s.Handler(), `{"message":"hi","conversation_id":"conv-1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, connectAccountReply, resp.Reply)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Zero(t, fa.calls, "agent must not be invoked without a token")
}

func TestHandleMessage_EmptyMessage(t *testing.T) {
	fa := &fakeAgent{}
	s := newTestChatServer(t, fa)

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		rec := postMessage(t, s.Handler(), body, map[string]string{
			"X-Google-Access-Token": "tok",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	assert.Zero(t, fa.calls)
}

func TestHandleMessage_MalformedBody(t *testing.T) {
	s := newTestChatServer(t, &fakeAgent{})

	rec := postMessage(t, s.Handler(), `not json`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid request body", resp.Error)
}

func TestHandleMessage_MethodNotAllowed(t *testing.T) {
	s := newTestChatServer(t, &fakeAgent{})

	req := httptest.NewRequest(http.MethodGet, "/ai/message", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleMessage_AgentError(t *testing.T) {
	fa := &fakeAgent{err: errors.New("completion failed")}
	s := newTestChatServer(t, fa)

	rec := postMessage(t, s.Handler(), `{"message":"hi"}`, map[string]string{
		"X-Google-Access-Token": "tok",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed to process message", resp.Error)
	assert.NotContains(t, rec.Body.String(), "completion failed")
}

func TestHandler_ServesHealthEndpoints(t *testing.T) {
	s := newTestChatServer(t, &fakeAgent{})
	handler := s.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestShutdown_FailsReadiness(t *testing.T) {
	s := newTestChatServer(t, &fakeAgent{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAccessToken_IgnoresNonBearerAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ai/message", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, accessToken(req))
}
