package ids

import (
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks client-generated temporary message ids. A server never
// assigns ids with this prefix, which keeps the two id spaces disjoint.
const TempPrefix = "tmp-"

// NewTempID returns a fresh temporary id for an optimistically-sent message.
func NewTempID() string {
	return TempPrefix + uuid.NewString()
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string {
	return "conv-" + uuid.NewString()
}

// IsTemp reports whether id is a client temporary id.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}
