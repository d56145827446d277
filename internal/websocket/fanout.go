package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Fanout relays room broadcasts between server instances. Every instance,
// including the publisher, receives each frame through Subscribe; the hub
// skips the frames it published itself.
type Fanout interface {
	Publish(ctx context.Context, frame FanoutFrame) error
	Subscribe(ctx context.Context, deliver func(frame FanoutFrame)) error
	Close() error
}

const fanoutChannel = "kelasin:chat:rooms"

// FanoutFrame is one room broadcast on the wire between instances.
type FanoutFrame struct {
	Origin  string          `json:"origin"` // publishing hub instance
	ClassID string          `json:"classId"`
	Exclude string          `json:"exclude,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// RedisFanout implements Fanout with Redis pub/sub.
type RedisFanout struct {
	client *redis.Client
}

// NewRedisFanout connects to Redis and checks the connection.
func NewRedisFanout(ctx context.Context, redisURL string) (*RedisFanout, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisFanout{client: client}, nil
}

func (f *RedisFanout) Publish(ctx context.Context, frame FanoutFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, fanoutChannel, payload).Err()
}

// Subscribe blocks, handing every frame to deliver until ctx is cancelled or
// the subscription drops.
func (f *RedisFanout) Subscribe(ctx context.Context, deliver func(frame FanoutFrame)) error {
	sub := f.client.Subscribe(ctx, fanoutChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var frame FanoutFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			deliver(frame)
		}
	}
}

func (f *RedisFanout) Close() error {
	return f.client.Close()
}
