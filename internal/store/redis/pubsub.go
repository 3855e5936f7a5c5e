// Package redis fans board events out across server instances.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces channel names so deployments can share a Redis.
const DefaultPrefix = "agentboard:"

// subscriberBuffer bounds how far a slow session may lag before the forwarder
// blocks.
const subscriberBuffer = 64

type PubSub struct {
	client *redis.Client
	prefix string
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return NewFromClient(client, DefaultPrefix), nil
}

// NewFromClient wraps an existing client. The PubSub takes ownership of it.
func NewFromClient(client *redis.Client, prefix string) *PubSub {
	return &PubSub{client: client, prefix: prefix}
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, ps.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. The returned
// channel is closed when ctx ends or cleanup is called.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, ps.prefix+channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, subscriberBuffer)
	done := make(chan struct{})
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			default:
			}

			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	// done is closed before the subscription so a forwarder parked on a full
	// out exits even when the caller has stopped reading.
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	return out, cleanup, nil
}
