package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedCompleter struct {
	errs  []error
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, msgs []Message) (string, error) {
	err := s.errs[s.calls%len(s.errs)]
	s.calls++

	if err != nil {
		return "", err
	}

	return "ok", nil
}

func TestProtectedCompleterOpensAfterFailures(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{errors.New("boom")}}

	p := NewProtectedCompleter(inner, ProtectedConfig{
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	})

	msgs := []Message{{Role: "user", Content: "hi"}}

	for i := 0; i < 2; i++ {
		if _, err := p.Complete(context.Background(), msgs); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := p.Complete(context.Background(), msgs)

	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}

	// the open circuit must not have reached the upstream
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

// rate limiting is the upstream working as intended, not an outage
func TestProtectedCompleterIgnoresRateLimits(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{ErrRateLimited}}

	p := NewProtectedCompleter(inner, ProtectedConfig{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})

	msgs := []Message{{Role: "user", Content: "hi"}}

	for i := 0; i < 5; i++ {
		_, err := p.Complete(context.Background(), msgs)

		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("call %d: got %v, want ErrRateLimited", i, err)
		}
	}
}

func TestProtectedCompleterHalfOpenRecovery(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{errors.New("boom"), nil}}

	p := NewProtectedCompleter(inner, ProtectedConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	msgs := []Message{{Role: "user", Content: "hi"}}

	if _, err := p.Complete(context.Background(), msgs); err == nil {
		t.Fatal("expected failure to open the circuit")
	}

	time.Sleep(20 * time.Millisecond)

	// cooldown elapsed; the trial call succeeds and closes the circuit
	text, err := p.Complete(context.Background(), msgs)

	if err != nil {
		t.Fatalf("trial call failed: %v", err)
	}

	if text != "ok" {
		t.Fatalf("got %q", text)
	}

	if _, err := p.Complete(context.Background(), msgs); err == nil {
		// scripted: third call fails again, which is fine; the point is it
		// was allowed through
		t.Log("third call unexpectedly succeeded")
	}
}
