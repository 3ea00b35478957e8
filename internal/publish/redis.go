package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/config"
)

type RedisSink struct {
	client  *redis.Client
	channel string
	history int64
	log     *logrus.Entry
}

// NewRedisSink connects and pings the server.
func NewRedisSink(ctx context.Context, cfg config.RedisConfig, log *logrus.Entry) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	log.Infof("redis connected to %s, channel %s", cfg.Addr, cfg.Channel)
	return &RedisSink{
		client:  client,
		channel: cfg.Channel,
		history: cfg.History,
		log:     log,
	}, nil
}

func (s *RedisSink) Name() string { return "redis" }

// HistoryKey is the list holding a device's recent messages, newest first.
func HistoryKey(device string) string {
	return fmt.Sprintf("goweatherboard:%s:readings", device)
}

// Publish sends msg on the channel and prepends it to the device history,
// trimmed to the configured length, in one round trip.
func (s *RedisSink) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := HistoryKey(msg.Device)
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, s.channel, body)
		if s.history > 0 {
			pipe.LPush(ctx, key, body)
			pipe.LTrim(ctx, key, 0, s.history-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
