package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/events"
)

const (
	// eventLogLimit bounds the per-instance recent-event list.
	eventLogLimit = 1000

	connectTimeout = 5 * time.Second
)

// RedisSink stores normalized events in Redis and notifies consumers over
// pub/sub. Messages and statuses live in per-instance hashes keyed by the
// provider message ID; connection state and the pending QR code are plain
// keys that later writes overwrite.
type RedisSink struct {
	client *redis.Client
	logger logging.Logger
}

// RedisConfig holds the connection settings for the sink.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisSink connects to Redis and verifies the connection with a ping.
func NewRedisSink(config *RedisConfig, logger logging.Logger) (*RedisSink, error) {
	if config == nil || config.Address == "" {
		return nil, errors.ConfigError("redis address is required")
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.InternalError("failed to connect to Redis", err)
	}

	return &RedisSink{
		client: client,
		logger: logger.WithFields(logging.String("component", "redis_sink")),
	}, nil
}

// NewRedisSinkWithClient wraps an existing client, used by tests.
func NewRedisSinkWithClient(client *redis.Client, logger logging.Logger) *RedisSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RedisSink{
		client: client,
		logger: logger.WithFields(logging.String("component", "redis_sink")),
	}
}

type storedMessage struct {
	Key        events.MessageKey        `json:"key"`
	Message    events.NormalizedMessage `json:"message"`
	ReceivedAt int64                    `json:"receivedAt"`
}

func (s *RedisSink) SaveMessage(ctx context.Context, instance string, key events.MessageKey, msg events.NormalizedMessage) error {
	record := storedMessage{
		Key:        key,
		Message:    msg,
		ReceivedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.InternalError("failed to marshal message", err)
	}

	if err := s.client.HSet(ctx, messagesKey(instance), key.ID, data).Err(); err != nil {
		return errors.InternalError("failed to save message", err)
	}

	return s.notify(ctx, instance, events.EventMessagesUpsert, data)
}

func (s *RedisSink) UpdateMessageStatus(ctx context.Context, instance string, key events.MessageKey, status string) error {
	if err := s.client.HSet(ctx, statusKey(instance), key.ID, status).Err(); err != nil {
		return errors.InternalError("failed to update message status", err)
	}

	data, err := json.Marshal(map[string]interface{}{
		"key":    key,
		"status": status,
	})
	if err != nil {
		return errors.InternalError("failed to marshal status update", err)
	}
	return s.notify(ctx, instance, events.EventMessagesUpdate, data)
}

func (s *RedisSink) SaveConnectionState(ctx context.Context, instance, state string) error {
	if err := s.client.Set(ctx, connectionKey(instance), state, 0).Err(); err != nil {
		return errors.InternalError("failed to save connection state", err)
	}

	data, err := json.Marshal(map[string]string{"state": state})
	if err != nil {
		return errors.InternalError("failed to marshal connection state", err)
	}
	return s.notify(ctx, instance, events.EventConnectionUpdate, data)
}

func (s *RedisSink) StoreQR(ctx context.Context, instance, qrcode string) error {
	// A new QR code supersedes any pending one, so a plain SET is enough.
	if err := s.client.Set(ctx, qrKey(instance), qrcode, 0).Err(); err != nil {
		return errors.InternalError("failed to store QR code", err)
	}

	data, err := json.Marshal(map[string]string{"qrcode": qrcode})
	if err != nil {
		return errors.InternalError("failed to marshal QR update", err)
	}
	return s.notify(ctx, instance, events.EventQRUpdate, data)
}

func (s *RedisSink) SaveEvent(ctx context.Context, instance, kind string, data json.RawMessage) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event": kind,
		"data":  data,
	})
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	return s.notify(ctx, instance, kind, payload)
}

// notify publishes on the instance channel and appends to the bounded
// recent-event list so consumers that were offline can catch up.
func (s *RedisSink) notify(ctx context.Context, instance, kind string, data []byte) error {
	envelope, err := json.Marshal(map[string]interface{}{
		"event":     kind,
		"instance":  instance,
		"data":      json.RawMessage(data),
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return errors.InternalError("failed to marshal notification", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Publish(ctx, channelKey(instance), envelope)
	pipe.LPush(ctx, recentKey(instance), envelope)
	pipe.LTrim(ctx, recentKey(instance), 0, eventLogLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.InternalError("failed to notify consumers", err)
	}

	s.logger.Debug("Event delivered",
		logging.String("instance", instance),
		logging.String("event", kind),
	)
	return nil
}

func (s *RedisSink) Health(ctx context.Context) error {
	if s.client == nil {
		return errors.ConfigError("redis client not initialized")
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func messagesKey(instance string) string   { return fmt.Sprintf("messages:%s", instance) }
func statusKey(instance string) string     { return fmt.Sprintf("message_status:%s", instance) }
func connectionKey(instance string) string { return fmt.Sprintf("connection:%s", instance) }
func qrKey(instance string) string         { return fmt.Sprintf("qr:%s", instance) }
func channelKey(instance string) string    { return fmt.Sprintf("events:%s", instance) }
func recentKey(instance string) string     { return fmt.Sprintf("events:%s:recent", instance) }

var _ Sink = (*RedisSink)(nil)
