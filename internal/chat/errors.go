package chat

import "errors"

var (
	// ErrInvalidInput covers empty content or emoji and missing identifiers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the message or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a non-author edits or deletes a message.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage wraps failures of the message store. Callers may retry.
	ErrStorage = errors.New("storage failure")
)

// ErrorCode maps an engine error to a stable code for clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal"
	}
}
