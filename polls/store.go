package polls

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/suryanshishere/real-time-interaction-module/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxOptions bounds the number of options a poll may carry.
const MaxOptions = 7

// CreatePollInput is the creation payload. Options are trimmed before
// validation.
type CreatePollInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Store is the durable poll record store. ApplyVote is a single atomic
// conditional update: the tally increment and the ledger append either both
// happen or neither does. An empty identity increments without touching the
// ledger (anonymous mode). Callers validate the option index against a
// prior read; options are immutable so the check cannot go stale.
type Store interface {
	CreatePoll(ctx context.Context, in CreatePollInput, owner string) (*mongo.Poll, error)
	PollByCode(ctx context.Context, code string) (*mongo.Poll, error)
	PollsByOwner(ctx context.Context, owner string) ([]mongo.Poll, error)
	ApplyVote(ctx context.Context, code, identity string, optionIndex int) ([]int64, error)
}

func validateCreate(in *CreatePollInput) error {
	in.Question = strings.TrimSpace(in.Question)
	if in.Question == "" {
		return fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if len(in.Options) < 2 {
		return fmt.Errorf("%w: at least 2 options required", ErrValidation)
	}
	if len(in.Options) > MaxOptions {
		return fmt.Errorf("%w: at most %d options allowed", ErrValidation, MaxOptions)
	}
	for i, o := range in.Options {
		in.Options[i] = strings.TrimSpace(o)
		if in.Options[i] == "" {
			return fmt.Errorf("%w: option %d is empty", ErrValidation, i+1)
		}
	}
	return nil
}

func newPoll(in CreatePollInput, owner, code string) *mongo.Poll {
	return &mongo.Poll{
		SessionCode: code,
		Question:    in.Question,
		Options:     in.Options,
		Votes:       make([]int64, len(in.Options)),
		VotesByUser: []mongo.LedgerEntry{},
		CreatedBy:   owner,
		CreatedAt:   time.Now().UTC(),
	}
}

// MongoStore persists polls in the shared mongo database.
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) CreatePoll(ctx context.Context, in CreatePollInput, owner string) (*mongo.Poll, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	code, err := GenerateSessionCode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	poll := newPoll(in, owner, code)
	res, err := mongo.Database.Collection("polls").InsertOne(ctx, poll)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		log.Errorf("mongo, err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	poll.ID = res.InsertedID.(primitive.ObjectID)
	return poll, nil
}

func (s *MongoStore) PollByCode(ctx context.Context, code string) (*mongo.Poll, error) {
	poll := &mongo.Poll{}
	err := mongo.Database.Collection("polls").FindOne(ctx, bson.M{
		"session_code": code,
	}).Decode(poll)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return poll, nil
}

func (s *MongoStore) PollsByOwner(ctx context.Context, owner string) ([]mongo.Poll, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := mongo.Database.Collection("polls").Find(ctx, bson.M{
		"created_by": owner,
	}, opts)
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	polls := []mongo.Poll{}
	if err = cursor.All(ctx, &polls); err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return polls, nil
}

// ApplyVote increments the tally and appends the ledger entry in one
// conditional update. The ledger guard in the filter makes two concurrent
// votes by the same identity race safely at the store, not at the
// application layer. One immediate retry on a transient failure, then the
// error surfaces as ErrStore.
func (s *MongoStore) ApplyVote(ctx context.Context, code, identity string, optionIndex int) ([]int64, error) {
	field := fmt.Sprintf("votes.%d", optionIndex)
	filter := bson.M{
		"session_code": code,
		field:          bson.M{"$exists": true},
	}
	update := bson.M{"$inc": bson.M{field: 1}}
	if identity != "" {
		filter["votes_by_user.user_id"] = bson.M{"$ne": identity}
		update["$push"] = bson.M{"votes_by_user": mongo.LedgerEntry{
			UserID:      identity,
			OptionIndex: optionIndex,
		}}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	poll := &mongo.Poll{}
	err := mongo.Database.Collection("polls").FindOneAndUpdate(ctx, filter, update, opts).Decode(poll)
	if err != nil && err != mongo.ErrNoDocuments {
		// transient store failure, retry once before giving up
		log.Warnf("mongo, retrying vote commit, err=%v", err)
		err = mongo.Database.Collection("polls").FindOneAndUpdate(ctx, filter, update, opts).Decode(poll)
	}
	if err == mongo.ErrNoDocuments {
		return nil, s.rejectVote(ctx, code, identity)
	}
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return poll.Votes, nil
}

// rejectVote decides why the conditional update matched nothing.
func (s *MongoStore) rejectVote(ctx context.Context, code, identity string) error {
	poll, err := s.PollByCode(ctx, code)
	if err != nil {
		return err
	}
	if identity != "" {
		for _, e := range poll.VotesByUser {
			if e.UserID == identity {
				return ErrAlreadyVoted
			}
		}
	}
	return ErrInvalidOption
}
