package database

import (
	"github.com/redis/go-redis/v9"
)

// NewRedis builds the pub/sub client for the event stream.
func NewRedis(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
