package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/chat"
	"github.com/medicareplus/portal/internal/http/handlers"
	"github.com/medicareplus/portal/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompleter struct {
	completeFn func(ctx context.Context, msgs []chat.Message) (string, error)
	called     bool
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	f.called = true

	if f.completeFn != nil {
		return f.completeFn(ctx, msgs)
	}

	return "general advice", nil
}

func chatbotRouter(c chat.Completer) *gin.Engine {
	r := gin.New()

	h := handlers.NewChatbotHandler(c, nil, discardLogger())

	grp := r.Group("/functions")
	grp.Use(middlewares.PublicCORS())
	grp.POST("/chatbot", h.Chat)
	grp.OPTIONS("/chatbot", func(*gin.Context) {})

	return r
}

func postChat(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/functions/chatbot", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestChatbotGating(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantForward bool
		wantAuth    bool
	}{
		{
			name:        "anonymous_general_question_forwards",
			body:        `{"messages":[{"role":"user","content":"What are flu symptoms?"}],"isAuthenticated":false}`,
			wantStatus:  http.StatusOK,
			wantForward: true,
		},
		{
			name:       "anonymous_personal_question_requires_auth",
			body:       `{"messages":[{"role":"user","content":"Show my records"}],"isAuthenticated":false}`,
			wantStatus: http.StatusOK,
			wantAuth:   true,
		},
		{
			name:        "authenticated_personal_question_forwards",
			body:        `{"messages":[{"role":"user","content":"Show my records"}],"isAuthenticated":true}`,
			wantStatus:  http.StatusOK,
			wantForward: true,
		},
		{
			name: "gate_checks_latest_user_message_only",
			body: `{"messages":[
				{"role":"user","content":"show my records"},
				{"role":"assistant","content":"Please log in to continue personalized assistance."},
				{"role":"user","content":"ok, what is diabetes?"}
			],"isAuthenticated":false}`,
			wantStatus:  http.StatusOK,
			wantForward: true,
		},
		{
			name:       "empty_messages_rejected",
			body:       `{"messages":[],"isAuthenticated":false}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed_json_rejected",
			body:       `{"messages": [`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{}
			r := chatbotRouter(fake)

			w := postChat(t, r, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if fake.called != tt.wantForward {
				t.Fatalf("forwarded=%v, want %v", fake.called, tt.wantForward)
			}

			if tt.wantAuth {
				var resp struct {
					RequiresAuth bool   `json:"requiresAuth"`
					Message      string `json:"message"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("bad body: %v", err)
				}

				if !resp.RequiresAuth || resp.Message != chat.AuthPrompt {
					t.Fatalf("unexpected gate response: %+v", resp)
				}
			}
		})
	}
}

func TestChatbotUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "rate_limited", err: chat.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "quota_exceeded", err: chat.ErrQuotaExceeded, wantStatus: http.StatusPaymentRequired},
		{name: "circuit_open", err: chat.ErrCircuitOpen, wantStatus: http.StatusTooManyRequests},
		{name: "generic_failure", err: errors.New("upstream status 502"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{
				completeFn: func(ctx context.Context, msgs []chat.Message) (string, error) {
					return "", tt.err
				},
			}

			r := chatbotRouter(fake)

			w := postChat(t, r, `{"messages":[{"role":"user","content":"hello"}],"isAuthenticated":true}`)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			// the widget renders the error field directly
			var resp struct {
				Error string `json:"error"`
			}

			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Fatalf("expected {error} body, got %s", w.Body.String())
			}
		})
	}
}

func TestChatbotPanicRecovery(t *testing.T) {
	fake := &fakeCompleter{
		completeFn: func(ctx context.Context, msgs []chat.Message) (string, error) {
			panic("upstream client exploded")
		},
	}

	r := chatbotRouter(fake)

	w := postChat(t, r, `{"messages":[{"role":"user","content":"hello"}],"isAuthenticated":true}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("panic did not produce a JSON error body: %s", w.Body.String())
	}
}

func TestChatbotPreflight(t *testing.T) {
	r := chatbotRouter(&fakeCompleter{})

	req := httptest.NewRequest(http.MethodOptions, "/functions/chatbot", nil)
	req.Header.Set("Origin", "http://localhost:5173")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight got %d, want 200", w.Code)
	}

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing permissive CORS header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
