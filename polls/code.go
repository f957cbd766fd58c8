package polls

import (
	"crypto/rand"
	"math/big"
)

// CodeLength is the fixed length of a session code.
const CodeLength = 6

// Uppercase alphanumerics only, codes are meant to be read out loud.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSessionCode returns a fresh session code. Uniqueness is enforced
// by the store at insert time, a collision surfaces as ErrConflict and the
// caller retries with a new code.
func GenerateSessionCode() (string, error) {
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
