package polls

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/suryanshishere/real-time-interaction-module/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore implements Store in process memory. It backs redis/mongo-less
// runs and the test suite; its ApplyVote carries the same atomicity
// contract as the mongo implementation, one lock-held check-and-commit.
type MemoryStore struct {
	// GenCode may be replaced to force deterministic codes or collisions.
	GenCode func() (string, error)

	mtx   sync.Mutex
	polls map[string]*mongo.Poll
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		GenCode: GenerateSessionCode,
		polls:   make(map[string]*mongo.Poll),
	}
}

func (s *MemoryStore) CreatePoll(ctx context.Context, in CreatePollInput, owner string) (*mongo.Poll, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	code, err := s.GenCode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.polls[code]; ok {
		return nil, ErrConflict
	}

	poll := newPoll(in, owner, code)
	poll.ID = primitive.NewObjectID()
	s.polls[code] = poll
	return copyPoll(poll), nil
}

func (s *MemoryStore) PollByCode(ctx context.Context, code string) (*mongo.Poll, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	poll, ok := s.polls[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPoll(poll), nil
}

func (s *MemoryStore) PollsByOwner(ctx context.Context, owner string) ([]mongo.Poll, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	polls := []mongo.Poll{}
	for _, p := range s.polls {
		if p.CreatedBy == owner {
			polls = append(polls, *copyPoll(p))
		}
	}
	// newest first; ids break timestamp ties so the order is stable even
	// though the polls come out of a map
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return polls[i].ID.Hex() > polls[j].ID.Hex()
	})
	return polls, nil
}

func (s *MemoryStore) ApplyVote(ctx context.Context, code, identity string, optionIndex int) ([]int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	poll, ok := s.polls[code]
	if !ok {
		return nil, ErrNotFound
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return nil, ErrInvalidOption
	}
	if identity != "" {
		for _, e := range poll.VotesByUser {
			if e.UserID == identity {
				return nil, ErrAlreadyVoted
			}
		}
		poll.VotesByUser = append(poll.VotesByUser, mongo.LedgerEntry{
			UserID:      identity,
			OptionIndex: optionIndex,
		})
	}
	poll.Votes[optionIndex]++

	tally := make([]int64, len(poll.Votes))
	copy(tally, poll.Votes)
	return tally, nil
}

func copyPoll(p *mongo.Poll) *mongo.Poll {
	out := *p
	out.Options = append([]string(nil), p.Options...)
	out.Votes = append([]int64(nil), p.Votes...)
	out.VotesByUser = append([]mongo.LedgerEntry(nil), p.VotesByUser...)
	return &out
}
