package core

// Error codes sent to clients in error events.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeUnknownEvent     = "unknown_event"
	ErrCodeJoinFailed       = "join_failed"
	ErrCodeTooManyRooms     = "too_many_rooms"
	ErrCodeRateLimited      = "rate_limited"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
