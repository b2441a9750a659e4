package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/sjavsgame/sjavs-server/internal/game"
)

const publishTimeout = 5 * time.Second

// PublishEvent broadcasts an encoded event on the match's channel. Failures
// here never roll back the state mutation that produced the event.
func (s *Store) PublishEvent(ctx context.Context, matchID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.rdb.Publish(ctx, GameChannel(matchID), payload).Err(); err != nil {
		return game.Infrastructure(fmt.Errorf("publish %s: %w", matchID, err))
	}
	return nil
}

// Subscriber maintains the process-wide set of match channel subscriptions.
// Channels are reference-counted so concurrent users of the same match share
// one Redis subscription.
type Subscriber struct {
	pubsub  *redis.PubSub
	handler func(matchID string, payload []byte)
	logger  *log.Logger

	mu   sync.Mutex
	refs map[string]int
}

// NewSubscriber opens a dedicated subscription connection. Delivered payloads
// are handed to handler with the match id parsed off the channel name.
func (s *Store) NewSubscriber(ctx context.Context, handler func(matchID string, payload []byte)) *Subscriber {
	return &Subscriber{
		pubsub:  s.rdb.Subscribe(ctx),
		handler: handler,
		logger:  s.logger.WithPrefix("pubsub"),
		refs:    make(map[string]int),
	}
}

// Subscribe adds interest in a match's channel. Only the first subscriber for
// a match touches Redis.
func (sub *Subscriber) Subscribe(ctx context.Context, matchID string) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	sub.refs[matchID]++
	if sub.refs[matchID] > 1 {
		return nil
	}
	if err := sub.pubsub.Subscribe(ctx, GameChannel(matchID)); err != nil {
		sub.refs[matchID]--
		return game.Infrastructure(fmt.Errorf("subscribe %s: %w", matchID, err))
	}
	sub.logger.Debug("subscribed", "match_id", matchID)
	return nil
}

// Unsubscribe drops one reference; the Redis subscription goes away with the
// last one.
func (sub *Subscriber) Unsubscribe(ctx context.Context, matchID string) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.refs[matchID] == 0 {
		return nil
	}
	sub.refs[matchID]--
	if sub.refs[matchID] > 0 {
		return nil
	}
	delete(sub.refs, matchID)
	if err := sub.pubsub.Unsubscribe(ctx, GameChannel(matchID)); err != nil {
		return game.Infrastructure(fmt.Errorf("unsubscribe %s: %w", matchID, err))
	}
	sub.logger.Debug("unsubscribed", "match_id", matchID)
	return nil
}

// Run delivers messages until the context ends or the connection closes.
func (sub *Subscriber) Run(ctx context.Context) error {
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			matchID := strings.TrimPrefix(msg.Channel, GameChannel(""))
			sub.handler(matchID, []byte(msg.Payload))
		}
	}
}

// Close tears down the subscription connection.
func (sub *Subscriber) Close() error {
	return sub.pubsub.Close()
}
