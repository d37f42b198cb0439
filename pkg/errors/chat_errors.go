package errors

var (
	// Domain errors — used in usecase/repository
	ErrMissingFields      = InvalidArg("receiver id, content and temp id are required")
	ErrEmptyContent       = InvalidArg("message content cannot be empty")
	ErrContentTooLong     = InvalidArg("message too long (1000 characters max)")
	ErrRateLimited        = ResourceExhausted("too many messages, slow down")
	ErrSenderNotConnected = Unauthorized("sender session not found")
	ErrReceiverNotFound   = NotFound("receiver not found")
	ErrUserNotFound       = NotFound("user not found")
	ErrInvalidToken       = Unauthorized("invalid token")
	ErrIntegrityFailed    = DataLoss("message hash does not match content")
	ErrNotConnected       = FailedPrecondition("transport not connected")
	ErrInvalidUserID      = InvalidArg("invalid user id for conversation")
	ErrSendFailed         = DeadlineAfterRetries()
	ErrOutboxFull         = ResourceExhausted("too many unacknowledged messages")
)

func DeadlineAfterRetries() error {
	return New(CodeDeadlineExceeded, "message failed after max retries")
}

func ErrPersistFailed(cause error) error {
	return Wrap(CodeInternal, "failed to persist message", cause)
}
