package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRoleLookup struct {
	mu     sync.Mutex
	roles  map[string]role.Role
	err    error
	delay  time.Duration
	nCalls int
}

func (f *fakeRoleLookup) RoleForUser(ctx context.Context, userID string) (role.Role, error) {
	f.mu.Lock()
	f.nCalls++
	delay := f.delay
	err := f.err
	r := f.roles[userID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return role.None, ctx.Err()
		}
	}

	if err != nil {
		return role.None, err
	}

	return r, nil
}

// waitFor polls the resolver until cond holds or the deadline passes.
func waitFor(t *testing.T, r *session.Resolver, cond func(session.State) bool) session.State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		st := r.State()

		if cond(st) {
			return st
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("condition not met before deadline, last state: %+v", r.State())
	return session.State{}
}

func TestResolverSignIn(t *testing.T) {
	lookup := &fakeRoleLookup{roles: map[string]role.Role{"u1": role.Doctor}}
	r := session.NewResolver(lookup, discardLogger(), nil)

	ctx := context.Background()

	r.Ingest(ctx, session.Event{Type: session.SignedIn, UserID: "u1", Email: "doc@x", At: time.Now()})

	// the sign-in transition itself is immediate, role resolution is not
	st := r.State()

	if st.UserID != "u1" {
		t.Fatalf("user not set synchronously: %+v", st)
	}

	st = waitFor(t, r, func(s session.State) bool { return !s.Loading })

	if st.Role != role.Doctor {
		t.Fatalf("got role %q, want doctor", st.Role)
	}
}

func TestResolverSignOut(t *testing.T) {
	lookup := &fakeRoleLookup{roles: map[string]role.Role{"u1": role.Patient}}
	r := session.NewResolver(lookup, discardLogger(), nil)

	ctx := context.Background()

	r.Ingest(ctx, session.Event{Type: session.SignedIn, UserID: "u1", At: time.Now()})
	waitFor(t, r, func(s session.State) bool { return !s.Loading })

	r.Ingest(ctx, session.Event{Type: session.SignedOut, At: time.Now()})

	st := r.State()

	if st.UserID != "" || st.Role != role.None || st.Loading {
		t.Fatalf("sign-out did not clear state: %+v", st)
	}
}

func TestResolverLookupFailure(t *testing.T) {
	lookup := &fakeRoleLookup{err: errors.New("db down")}
	r := session.NewResolver(lookup, discardLogger(), nil)

	r.Ingest(context.Background(), session.Event{Type: session.SignedIn, UserID: "u1", At: time.Now()})

	st := waitFor(t, r, func(s session.State) bool { return !s.Loading })

	// authenticated but role-less
	if st.UserID != "u1" || st.Role != role.None {
		t.Fatalf("got %+v, want signed-in user with no role", st)
	}
}

// a slow lookup for an earlier event must not clobber the state produced
// by a later event
func TestResolverLastEventWins(t *testing.T) {
	lookup := &fakeRoleLookup{
		roles: map[string]role.Role{"u1": role.Doctor},
		delay: 100 * time.Millisecond,
	}
	r := session.NewResolver(lookup, discardLogger(), nil)

	ctx := context.Background()

	r.Ingest(ctx, session.Event{Type: session.SignedIn, UserID: "u1", At: time.Now()})
	r.Ingest(ctx, session.Event{Type: session.SignedOut, At: time.Now()})

	// give the stale lookup time to complete
	time.Sleep(250 * time.Millisecond)

	st := r.State()

	if st.UserID != "" || st.Loading {
		t.Fatalf("stale lookup overwrote sign-out: %+v", st)
	}
}

func TestResolverSubscribe(t *testing.T) {
	lookup := &fakeRoleLookup{roles: map[string]role.Role{"u1": role.Patient}}
	r := session.NewResolver(lookup, discardLogger(), nil)

	ch, cancel := r.Subscribe()
	defer cancel()

	r.Ingest(context.Background(), session.Event{Type: session.SignedIn, UserID: "u1", At: time.Now()})

	deadline := time.After(2 * time.Second)

	for {
		select {
		case st := <-ch:
			if !st.Loading && st.Role == role.Patient {
				return
			}
		case <-deadline:
			t.Fatal("never saw resolved patient state on subscription")
		}
	}
}

// fakeSource replays a scripted current session plus a stream of events.
type fakeSource struct {
	current session.Event
	events  chan session.Event
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan session.Event, error) {
	return f.events, nil
}

func (f *fakeSource) Current(ctx context.Context) (session.Event, error) {
	return f.current, nil
}

func TestResolverRunPicksUpExistingSession(t *testing.T) {
	lookup := &fakeRoleLookup{roles: map[string]role.Role{"u1": role.Doctor}}
	r := session.NewResolver(lookup, discardLogger(), nil)

	src := &fakeSource{
		current: session.Event{Type: session.SignedIn, UserID: "u1", Email: "doc@x", At: time.Now()},
		events:  make(chan session.Event),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = r.Run(ctx, src)
	}()

	st := waitFor(t, r, func(s session.State) bool { return !s.Loading && s.UserID == "u1" })

	if st.Role != role.Doctor {
		t.Fatalf("got role %q, want doctor", st.Role)
	}

	cancel()
	<-done
}
