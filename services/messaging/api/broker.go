package messagingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/altarlane/marketplace/internal/domain/messaging"
)

// ChannelName is the Redis channel carrying a conversation's messages.
func ChannelName(conversationID string) string {
	return "conversation:" + conversationID
}

// RedisBroker fans messages out over Redis pub/sub so every gateway replica
// can relay them to its connected participants.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// Publish sends m to its conversation channel.
func (b *RedisBroker) Publish(ctx context.Context, m messaging.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(m.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelName(m.ConversationID), err)
	}
	return nil
}

// Subscribe listens on a conversation channel. The subscription is active
// when Subscribe returns. Callers must Close it.
func (b *RedisBroker) Subscribe(ctx context.Context, conversationID string) (Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, ChannelName(conversationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChannelName(conversationID), err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan messaging.Message, 16)
	sub := &redisSubscription{messages: out, cancel: cancel}

	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m messaging.Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					continue
				}
				select {
				case out <- m:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

// Subscription delivers published messages until closed.
type Subscription interface {
	Messages() <-chan messaging.Message
	Close()
}

type redisSubscription struct {
	messages chan messaging.Message
	cancel   context.CancelFunc
	once     sync.Once
}

func (s *redisSubscription) Messages() <-chan messaging.Message {
	return s.messages
}

func (s *redisSubscription) Close() {
	s.once.Do(s.cancel)
}
