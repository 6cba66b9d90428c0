package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends events to a Redis stream. MaxLen trims the
// stream approximately; zero keeps everything.
type RedisStreamPublisher struct {
	Client       *redis.Client
	Stream       string
	MaxLen       int64
	WriteTimeout time.Duration
}

func NewRedisStreamPublisher(opt *redis.Options, stream string, maxLen int64, writeTimeout time.Duration) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		Client:       redis.NewClient(opt),
		Stream:       stream,
		MaxLen:       maxLen,
		WriteTimeout: writeTimeout,
	}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.Client == nil {
		return errors.New("redis publisher not configured")
	}
	stream := strings.TrimSpace(p.Stream)
	if stream == "" {
		return errors.New("redis stream name is empty")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if p.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.WriteTimeout)
		defer cancel()
	}
	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]any{
			"event_id":  ev.EventID,
			"type":      ev.Type,
			"client_id": strconv.FormatUint(ev.ClientID, 10),
			"payload":   string(payload),
		},
	}
	if p.MaxLen > 0 {
		args.MaxLen = p.MaxLen
		args.Approx = true
	}
	return p.Client.XAdd(ctx, args).Err()
}

func (p *RedisStreamPublisher) Ping(ctx context.Context) error {
	if p == nil || p.Client == nil {
		return errors.New("redis publisher not configured")
	}
	return p.Client.Ping(ctx).Err()
}

func (p *RedisStreamPublisher) Close() error {
	if p == nil || p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
