package polls

import (
	"context"
)

// Broadcaster fans a committed tally out to a poll's room. Delivery is
// best-effort and never fails the vote.
type Broadcaster interface {
	Broadcast(code string, tally []int64)
}

// Pipeline is the cast-vote gate: authenticate, load, validate, commit
// atomically, then broadcast. Every failure maps to a sentinel from this
// package and produces no broadcast and no state change.
type Pipeline struct {
	Store   Store
	Rooms   Broadcaster
	Resolve func(credential string) (string, error)

	// Anonymous disables identity resolution and dedup, accepting
	// unlimited votes per connection.
	Anonymous bool
}

// CastVote runs one vote request through the gate and returns the committed
// tally. The store record is re-read here, never trusted from a prior
// in-memory copy.
func (p *Pipeline) CastVote(ctx context.Context, credential, code string, optionIndex int) ([]int64, error) {
	var identity string
	if !p.Anonymous {
		if p.Resolve == nil || credential == "" {
			return nil, ErrUnauthorized
		}
		id, err := p.Resolve(credential)
		if err != nil || id == "" {
			return nil, ErrUnauthorized
		}
		identity = id
	}

	poll, err := p.Store.PollByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return nil, ErrInvalidOption
	}

	tally, err := p.Store.ApplyVote(ctx, code, identity, optionIndex)
	if err != nil {
		return nil, err
	}

	// the vote is committed by now, broadcast regardless of what the
	// submitter's connection does next
	if p.Rooms != nil {
		p.Rooms.Broadcast(code, tally)
	}
	return tally, nil
}
