package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/observability"
)

type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

// Event is one observed session transition. The resolver never creates
// sessions itself, it only watches them.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId,omitempty"`
	Email  string    `json:"email,omitempty"`
	At     time.Time `json:"at"`
}

// State is the resolver's published view: who is signed in, which role they
// resolved to, and whether a role lookup is still in flight.
type State struct {
	UserID  string
	Email   string
	Role    role.Role
	Loading bool
}

type RoleLookup interface {
	RoleForUser(ctx context.Context, userID string) (role.Role, error)
}

// Source is the session backend: a change subscription plus a one-shot
// current-session read covering sign-ins that happened before Run started.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
	Current(ctx context.Context) (Event, error)
}

// Resolver is the single ingestion point for session state. Both the
// subscription callback and the initial fetch may deliver events for the
// same session; resolution is generation-guarded so the latest observed
// event always wins and the state converges.
type Resolver struct {
	roles RoleLookup
	log   *slog.Logger
	prom  *observability.Prom

	mu      sync.Mutex
	state   State
	gen     uint64
	subs    map[int]chan State
	nextSub int
}

func NewResolver(roles RoleLookup, log *slog.Logger, prom *observability.Prom) *Resolver {
	return &Resolver{
		roles: roles,
		log:   log,
		prom:  prom,
		state: State{Loading: true},
		subs:  make(map[int]chan State),
	}
}

// Run subscribes first, then reads the current session once, then consumes
// events until ctx is done. Subscribing before the one-shot read means no
// transition between the two can be missed.
func (r *Resolver) Run(ctx context.Context, src Source) error {
	events, err := src.Subscribe(ctx)

	if err != nil {
		return err
	}

	cur, err := src.Current(ctx)

	if err != nil {
		r.log.Warn("could not read current session", "err", err)
	} else {
		r.Ingest(ctx, cur)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Ingest(ctx, ev)
		}
	}
}

// Ingest applies one session event. Sign-out resolves synchronously;
// sign-in publishes a loading state immediately and resolves the role in
// the background so the signed-in transition is never blocked by the
// lookup.
func (r *Resolver) Ingest(ctx context.Context, ev Event) {
	r.mu.Lock()
	r.gen++
	gen := r.gen

	if ev.Type == SignedOut || ev.UserID == "" {
		r.state = State{Loading: false}
		r.publishLocked()
		r.mu.Unlock()
		return
	}

	r.state = State{UserID: ev.UserID, Email: ev.Email, Loading: true}
	r.publishLocked()
	r.mu.Unlock()

	go r.resolveRole(ctx, gen, ev)
}

func (r *Resolver) resolveRole(ctx context.Context, gen uint64, ev Event) {
	lctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rl, err := r.roles.RoleForUser(lctx, ev.UserID)

	if err != nil {
		// authenticated but role-less; gating treats this as no access
		r.log.Error("role lookup failed", "user_id", ev.UserID, "err", err)
		rl = role.None
	}

	if r.prom != nil {
		result := string(rl)

		if err != nil {
			result = "error"
		} else if rl == role.None {
			result = "none"
		}

		r.prom.RoleResolutions.WithLabelValues(result).Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// a newer event has been ingested since this lookup started
	if gen != r.gen {
		return
	}

	r.state = State{UserID: ev.UserID, Email: ev.Email, Role: rl, Loading: false}
	r.publishLocked()
}

// State returns the latest published snapshot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe returns a channel of state snapshots and a cancel function.
// Slow consumers drop intermediate snapshots instead of blocking ingestion.
func (r *Resolver) Subscribe() (<-chan State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++

	ch := make(chan State, 8)
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if ch, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

func (r *Resolver) publishLocked() {
	for _, ch := range r.subs {
		select {
		case ch <- r.state:
		default:
		}
	}
}
