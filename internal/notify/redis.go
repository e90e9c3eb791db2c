package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-reservations/internal/config"
)

// RedisBroker publishes and subscribes to notification topics over Redis
// pub/sub. Topics map one to one onto Redis channels.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient creates a client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisBroker constructs a RedisBroker.
func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

// Publish sends payload to topic. Having no subscriber is not an error.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	receivers, err := b.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if receivers == 0 {
		b.logger.Debug("no subscriber for topic", zap.String("topic", topic))
	}
	return nil
}

// Subscribe streams payloads published to topics until ctx is done or the
// returned cancel func is called. The subscription is active when Subscribe
// returns.
func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (<-chan []byte, func(), error) {
	ps := b.client.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() {
			if err := ps.Close(); err != nil {
				b.logger.Warn("close subscription", zap.Error(err))
			}
		}()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
