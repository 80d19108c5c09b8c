// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/geofence/internal/geofence"
)

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes geofence transitions on a pub/sub channel.
type Redis struct {
	client  redisPublisher
	channel string
	logger  zerolog.Logger
}

func NewRedis(client *redis.Client, channel string, logger zerolog.Logger) *Redis {
	return &Redis{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "alert_redis").Str("channel", channel).Logger(),
	}
}

// NewRedisClient connects to addr and checks the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) OnEvent(e geofence.Event) {
	if !e.Changed {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error().Err(err).Msg("event JSON marshal error")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		r.logger.Warn().Err(err).Msg("redis publish error")
		return
	}
	r.logger.Debug().Int64("receivers", receivers).Msg("published geofence event")
}
