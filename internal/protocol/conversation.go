package protocol

import appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"

// ConversationID derives the deterministic key for a pair of users. Both
// sides of the pair compute the same id regardless of argument order.
func ConversationID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", appErrors.ErrInvalidUserID
	}
	if a > b {
		a, b = b, a
	}
	return a + "_" + b, nil
}
