package polls

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	code  string
	tally []int64
}

// recordingRooms captures broadcasts so tests can assert on the
// broadcast-on-success-only property.
type recordingRooms struct {
	mtx   sync.Mutex
	calls []broadcastCall
}

func (r *recordingRooms) Broadcast(code string, tally []int64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls = append(r.calls, broadcastCall{code: code, tally: tally})
}

func (r *recordingRooms) snapshot() []broadcastCall {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]broadcastCall(nil), r.calls...)
}

func stubResolver(tokens map[string]string) func(string) (string, error) {
	return func(credential string) (string, error) {
		if id, ok := tokens[credential]; ok {
			return id, nil
		}
		return "", ErrUnauthorized
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *MemoryStore, *recordingRooms, string) {
	t.Helper()
	store := NewMemoryStore()
	rooms := &recordingRooms{}
	p := &Pipeline{
		Store: store,
		Rooms: rooms,
		Resolve: stubResolver(map[string]string{
			"tok-a": "user-a",
			"tok-b": "user-b",
		}),
	}
	return p, store, rooms, createTestPoll(t, store)
}

func TestCastVoteUnauthorized(t *testing.T) {
	p, store, rooms, code := newTestPipeline(t)
	ctx := context.Background()

	for _, cred := range []string{"", "bogus"} {
		_, err := p.CastVote(ctx, cred, code, 0)
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	poll, err := store.PollByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0}, poll.Votes)
	require.Empty(t, rooms.snapshot())
}

func TestCastVoteUnknownPoll(t *testing.T) {
	p, _, rooms, _ := newTestPipeline(t)

	_, err := p.CastVote(context.Background(), "tok-a", "ZZZZZZ", 0)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, rooms.snapshot())
}

func TestCastVoteInvalidOption(t *testing.T) {
	p, store, rooms, code := newTestPipeline(t)
	ctx := context.Background()

	for _, idx := range []int{-1, 2, 5} {
		_, err := p.CastVote(ctx, "tok-a", code, idx)
		require.ErrorIs(t, err, ErrInvalidOption)
	}

	poll, err := store.PollByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0}, poll.Votes)
	require.Empty(t, poll.VotesByUser)
	require.Empty(t, rooms.snapshot())
}

func TestCastVoteBroadcastsPostIncrementTally(t *testing.T) {
	p, _, rooms, code := newTestPipeline(t)

	tally, err := p.CastVote(context.Background(), "tok-a", code, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, tally)

	calls := rooms.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, code, calls[0].code)
	require.Equal(t, []int64{0, 1}, calls[0].tally)
}

func TestCastVoteAlreadyVotedDoesNotBroadcast(t *testing.T) {
	p, store, rooms, code := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.CastVote(ctx, "tok-a", code, 1)
	require.NoError(t, err)

	_, err = p.CastVote(ctx, "tok-a", code, 0)
	require.ErrorIs(t, err, ErrAlreadyVoted)

	poll, err := store.PollByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, poll.Votes)
	require.Len(t, rooms.snapshot(), 1)
}

func TestCastVoteAnonymousMode(t *testing.T) {
	store := NewMemoryStore()
	rooms := &recordingRooms{}
	p := &Pipeline{Store: store, Rooms: rooms, Anonymous: true}
	code := createTestPoll(t, store)
	ctx := context.Background()

	// no credential, no dedup
	for i := 0; i < 3; i++ {
		_, err := p.CastVote(ctx, "", code, 0)
		require.NoError(t, err)
	}

	poll, err := store.PollByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 0}, poll.Votes)
	require.Empty(t, poll.VotesByUser)
	require.Len(t, rooms.snapshot(), 3)
}

func TestCastVoteScenario(t *testing.T) {
	p, store, rooms, code := newTestPipeline(t)
	ctx := context.Background()

	// A votes Blue
	tally, err := p.CastVote(ctx, "tok-a", code, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, tally)
	require.Len(t, rooms.snapshot(), 1)

	// A tries to switch to Red
	_, err = p.CastVote(ctx, "tok-a", code, 0)
	require.ErrorIs(t, err, ErrAlreadyVoted)

	// B votes out of range
	_, err = p.CastVote(ctx, "tok-b", code, 5)
	require.ErrorIs(t, err, ErrInvalidOption)

	poll, err := store.PollByCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1}, poll.Votes)
	require.Len(t, rooms.snapshot(), 1)
}
