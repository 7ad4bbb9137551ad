package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mentorhub/backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisRelay mirrors realtime events between server instances through a redis
// pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *RealtimeHub
}

// NewRedisRelay connects to redis and verifies the connection.
func NewRedisRelay(opts *redis.Options, channel string, hub *RealtimeHub) (*RedisRelay, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Infof("[Realtime] relay connected to redis at %s, channel %s", opts.Addr, channel)
	return &RedisRelay{client: client, channel: channel, hub: hub}, nil
}

// Forward implements EventRelay.
func (r *RedisRelay) Forward(event FeedbackEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run delivers events published by other instances until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var event FeedbackEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warnf("[Realtime] invalid relayed event: %v", err)
		return
	}
	if event.Origin == r.hub.Origin() {
		return
	}
	r.hub.Deliver(event)
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
