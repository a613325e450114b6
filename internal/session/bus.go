package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	busChannel = "session:events"
	busLastKey = "session:last"
)

// RedisBus carries session events between the credential-issuer handlers
// (publishers) and the resolver (subscriber). The last event is retained
// under a key so the resolver's one-shot Current read covers sign-ins that
// happened before it subscribed.
type RedisBus struct {
	rdb *redis.Client
}

type BusConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisBus(cfg BusConfig) *RedisBus {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)

	if err != nil {
		return err
	}

	if err := b.rdb.Set(ctx, busLastKey, payload, 0).Err(); err != nil {
		return err
	}

	return b.rdb.Publish(ctx, busChannel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := b.rdb.Subscribe(ctx, busChannel)

	// force the subscription to be established before returning
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan Event)

	go func() {
		defer close(out)
		defer sub.Close()

		for msg := range sub.Channel() {
			var ev Event

			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Current returns the retained last event; with nothing retained the
// session is reported as signed out.
func (b *RedisBus) Current(ctx context.Context) (Event, error) {
	payload, err := b.rdb.Get(ctx, busLastKey).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Event{Type: SignedOut, At: time.Now().UTC()}, nil
		}

		return Event{}, err
	}

	var ev Event

	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}

	return ev, nil
}
