package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Poll is the single durable record of the system, keyed publicly by its
// session code. Votes is positionally aligned with Options and always the
// same length. The internal id, the owner and the ledger are never exposed
// in public JSON.
type Poll struct {
	ID          primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	SessionCode string             `json:"sessionCode" bson:"session_code"`
	Question    string             `json:"question" bson:"question"`
	Options     []string           `json:"options" bson:"options"`
	Votes       []int64            `json:"votes" bson:"votes"`
	VotesByUser []LedgerEntry      `json:"-" bson:"votes_by_user"`
	CreatedBy   string             `json:"-" bson:"created_by,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}

// LedgerEntry records one committed vote. At most one entry exists per
// identity per poll, written atomically with the tally increment.
type LedgerEntry struct {
	UserID      string `bson:"user_id"`
	OptionIndex int    `bson:"option_index"`
}
