package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/yaziris/discured/internal/domain"
)

// SignalChannel is the pub/sub channel every domain event goes out on.
const SignalChannel = "discured:events"

// SignalService fans domain events out over redis pub/sub so the ops
// stream (and anything else listening) can pick them up. Publishing is
// fire-and-forget for callers; a down redis only degrades the stream.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, SignalChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe opens a subscription on the event channel. The caller owns
// the returned PubSub and must close it.
func (s *SignalService) Subscribe(ctx context.Context) *redis.PubSub {
	return s.rdb.Subscribe(ctx, SignalChannel)
}
