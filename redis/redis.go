package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/suryanshishere/real-time-interaction-module/configure"
)

var Ctx = context.Background()

// Client is nil when no redis_uri is configured; callers treat redis as an
// optional bridge.
var Client *redis.Client

// Setup connects the shared client. Called from main when a redis_uri is
// configured.
func Setup() error {
	options, err := redis.ParseURL(configure.Config.GetString("redis_uri"))
	if err != nil {
		return err
	}

	Client = redis.NewClient(options)
	return Client.Ping(Ctx).Err()
}

const ErrNil = redis.Nil

type PubSub = redis.PubSub
