package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/suryanshishere/real-time-interaction-module/mongo"
	"github.com/suryanshishere/real-time-interaction-module/polls"
	"github.com/suryanshishere/real-time-interaction-module/rooms"
)

func newTestApp(t *testing.T) (*fiber.App, *polls.MemoryStore, *rooms.Registry) {
	t.Helper()
	store := polls.NewMemoryStore()
	registry := rooms.NewRegistry()
	t.Cleanup(func() { registry.Close() })

	resolve := func(credential string) (string, error) {
		switch credential {
		case "tok-alice":
			return "alice", nil
		case "tok-bob":
			return "bob", nil
		}
		return "", polls.ErrUnauthorized
	}

	app := fiber.New()
	Register(app, Options{
		Store: store,
		Rooms: registry,
		Pipeline: &polls.Pipeline{
			Store:   store,
			Rooms:   registry,
			Resolve: resolve,
		},
		Resolve: resolve,
	})
	return app, store, registry
}

func jsonRequest(t *testing.T, method, target, token string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	return req
}

func decodePoll(t *testing.T, resp *http.Response) mongo.Poll {
	t.Helper()
	poll := mongo.Poll{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&poll))
	return poll
}

func TestCreatePollRequiresAuth(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/poll/create", "", polls.CreatePollInput{
		Question: "Pick a color",
		Options:  []string{"Red", "Blue"},
	}))
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestCreatePoll(t *testing.T) {
	app, store, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/poll/create", "tok-alice", polls.CreatePollInput{
		Question: "Pick a color",
		Options:  []string{"Red", "Blue"},
	}))
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	poll := decodePoll(t, resp)
	require.Len(t, poll.SessionCode, polls.CodeLength)
	require.Equal(t, "Pick a color", poll.Question)
	require.Equal(t, []int64{0, 0}, poll.Votes)

	stored, err := store.PollByCode(context.Background(), poll.SessionCode)
	require.NoError(t, err)
	require.Equal(t, "alice", stored.CreatedBy)
}

func TestCreatePollValidationError(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/poll/create", "tok-alice", polls.CreatePollInput{
		Question: "Pick a color",
		Options:  []string{"Red"},
	}))
	require.NoError(t, err)
	require.Equal(t, 400, resp.StatusCode)
}

func TestGetPoll(t *testing.T) {
	app, store, _ := newTestApp(t)

	created, err := store.CreatePoll(context.Background(), polls.CreatePollInput{
		Question: "Pick a color",
		Options:  []string{"Red", "Blue"},
	}, "alice")
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, "GET", "/poll/"+created.SessionCode, "", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	poll := decodePoll(t, resp)
	require.Equal(t, created.SessionCode, poll.SessionCode)

	// the public projection hides owner and ledger
	raw, err := app.Test(jsonRequest(t, "GET", "/poll/"+created.SessionCode, "", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), "alice")
	require.NotContains(t, string(body), "votes_by_user")
}

func TestGetPollNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/poll/ZZZZZZ", "", nil))
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
}

func TestMyPolls(t *testing.T) {
	app, store, _ := newTestApp(t)

	for i := 0; i < 2; i++ {
		_, err := store.CreatePoll(context.Background(), polls.CreatePollInput{
			Question: "Q",
			Options:  []string{"A", "B"},
		}, "alice")
		require.NoError(t, err)
	}
	_, err := store.CreatePoll(context.Background(), polls.CreatePollInput{
		Question: "Q",
		Options:  []string{"A", "B"},
	}, "bob")
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, "GET", "/my-polls", "tok-alice", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	list := []mongo.Poll{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)

	resp, err = app.Test(jsonRequest(t, "GET", "/my-polls", "", nil))
	require.NoError(t, err)
	require.Equal(t, 401, resp.StatusCode)
}

func TestWebsocketEndpointRequiresUpgrade(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/ws/", "", nil))
	require.NoError(t, err)
	require.Equal(t, 426, resp.StatusCode)
}
