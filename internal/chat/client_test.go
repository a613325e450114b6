package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		APIURL:    srv.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 100,
	}, nil)

	return c, srv
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClientComplete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotReq completionRequest

		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
			}

			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Errorf("bad request body: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionBody("Drink water and rest.")))
		})

		text, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "I have a cold"}})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if text != "Drink water and rest." {
			t.Fatalf("got %q", text)
		}

		// the system prompt must be prepended, not appended
		if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
			t.Fatalf("system prompt not prepended: %+v", gotReq.Messages)
		}

		if gotReq.Messages[1].Content != "I have a cold" {
			t.Fatalf("user message mangled: %+v", gotReq.Messages[1])
		}
	})

	t.Run("rate_limited", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

		if err != ErrRateLimited {
			t.Fatalf("got %v, want ErrRateLimited", err)
		}
	})

	t.Run("quota_exceeded", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})

		_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

		if err != ErrQuotaExceeded {
			t.Fatalf("got %v, want ErrQuotaExceeded", err)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

		if err == nil || err == ErrRateLimited || err == ErrQuotaExceeded {
			t.Fatalf("got %v, want generic upstream error", err)
		}
	})

	// a 200 with an unusable body degrades to the apology, never an error
	t.Run("malformed_body_falls_back", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"unexpected": true`))
		})

		text, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if text != apologyFallback {
			t.Fatalf("got %q, want apology fallback", text)
		}
	})

	t.Run("empty_choices_falls_back", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})

		text, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if text != apologyFallback {
			t.Fatalf("got %q, want apology fallback", text)
		}
	})
}
