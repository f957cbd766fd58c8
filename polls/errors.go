package polls

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("poll not found")
	ErrInvalidOption = errors.New("invalid option")
	ErrAlreadyVoted  = errors.New("already voted")
	ErrConflict      = errors.New("session code conflict")
	ErrValidation    = errors.New("invalid poll")
	ErrStore         = errors.New("store failure")
)

// UserMessage maps a pipeline error to the private acknowledgement text
// shown to the submitter. Failures are never broadcast.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted in this poll."
	case errors.Is(err, ErrInvalidOption):
		return "That option does not exist."
	case errors.Is(err, ErrNotFound):
		return "We don't know what poll that is."
	case errors.Is(err, ErrUnauthorized):
		return "Please log in to vote."
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Something went wrong, please try again."
	}
}
