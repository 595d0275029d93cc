// Package realtime fans community chat messages out to every connected client
// through a redis pub/sub channel.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mindmate/internal/model"
)

type CommunityFeed struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewCommunityFeed(client *redis.Client, channel string, log *zap.Logger) *CommunityFeed {
	if channel == "" {
		channel = "community:feed"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CommunityFeed{client: client, channel: channel, log: log}
}

func (f *CommunityFeed) Publish(ctx context.Context, msg model.CommunityMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal community message failed: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish community message failed: %w", err)
	}
	return nil
}

// Subscribe returns a channel of messages published after the call. The channel is
// closed when ctx ends or the redis subscription drops.
func (f *CommunityFeed) Subscribe(ctx context.Context) (<-chan model.CommunityMessage, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe community feed failed: %w", err)
	}

	out := make(chan model.CommunityMessage, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var msg model.CommunityMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					f.log.Warn("drop malformed community payload", zap.Error(err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
