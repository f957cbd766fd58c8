package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/suryanshishere/real-time-interaction-module/polls"
	"github.com/suryanshishere/real-time-interaction-module/redis"
)

// rest mounts the request/response surface: create, lookup by code, polls
// by owner.
func rest(app fiber.Router, opts Options) {
	app.Post("/poll/create", func(c *fiber.Ctx) error {
		owner, ok := requireIdentity(c, opts)
		if !ok {
			return nil
		}

		in := polls.CreatePollInput{}
		if err := c.BodyParser(&in); err != nil {
			return apiError(c, 400, "Invalid poll payload.")
		}

		poll, err := opts.Store.CreatePoll(c.Context(), in, owner)
		if errors.Is(err, polls.ErrValidation) {
			return apiError(c, 400, err.Error())
		}
		if errors.Is(err, polls.ErrConflict) {
			// the caller regenerates and retries, codes are random
			return apiError(c, 409, "Session code collision, please retry.")
		}
		if err != nil {
			log.Errorf("polls, err=%v", err)
			return apiError(c, 500, "Failed to create the poll.")
		}

		dropDeadMarker(poll.SessionCode)
		return c.Status(201).JSON(poll)
	})

	app.Get("/poll/:code", func(c *fiber.Ctx) error {
		code := c.Params("code")
		if deadMarkerSet(code) {
			return apiError(c, 404, "Session not found")
		}

		poll, err := opts.Store.PollByCode(c.Context(), code)
		if errors.Is(err, polls.ErrNotFound) {
			setDeadMarker(code)
			return apiError(c, 404, "Session not found")
		}
		if err != nil {
			log.Errorf("polls, err=%v", err)
			return apiError(c, 500, "Failed to load the poll.")
		}
		return c.JSON(poll)
	})

	app.Get("/my-polls", func(c *fiber.Ctx) error {
		owner, ok := requireIdentity(c, opts)
		if !ok {
			return nil
		}

		list, err := opts.Store.PollsByOwner(c.Context(), owner)
		if err != nil {
			log.Errorf("polls, err=%v", err)
			return apiError(c, 500, "Failed to load your polls.")
		}
		return c.JSON(list)
	})
}

func apiError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(&fiber.Map{
		"status":  status,
		"message": message,
	})
}

// credentialFrom pulls the session credential from the token cookie, or a
// bearer header for non-browser clients.
func credentialFrom(c *fiber.Ctx) string {
	if token := c.Cookies("token"); token != "" {
		return token
	}
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// requireIdentity resolves the caller, writing the 401 itself. In anonymous
// mode every caller passes with an empty identity.
func requireIdentity(c *fiber.Ctx, opts Options) (string, bool) {
	if opts.Anonymous {
		return "", true
	}
	if opts.Resolve == nil {
		_ = apiError(c, 401, "Unauthorized user, please do login / signup!")
		return "", false
	}
	identity, err := opts.Resolve(credentialFrom(c))
	if err != nil || identity == "" {
		_ = apiError(c, 401, "Unauthorized user, please do login / signup!")
		return "", false
	}
	return identity, true
}

// Negative lookup cache. Unknown codes get hammered by mistyped joins, so
// they are remembered for a while; session codes are never reused once a
// poll exists, and creation drops the marker for its fresh code.

func deadKey(code string) string {
	return fmt.Sprintf("cached:polls:%s", code)
}

func deadMarkerSet(code string) bool {
	if redis.Client == nil {
		return false
	}
	val, err := redis.Client.Get(redis.Ctx, deadKey(code)).Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
	}
	return val == "dead"
}

func setDeadMarker(code string) {
	if redis.Client == nil {
		return
	}
	if err := redis.Client.Set(redis.Ctx, deadKey(code), "dead", time.Hour*6).Err(); err != nil {
		log.Errorf("redis, err=%v", err)
	}
}

func dropDeadMarker(code string) {
	if redis.Client == nil {
		return
	}
	if err := redis.Client.Del(redis.Ctx, deadKey(code)).Err(); err != nil {
		log.Errorf("redis, err=%v", err)
	}
}
