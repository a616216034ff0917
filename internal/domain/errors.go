package domain

import "errors"

// subError is a named error that also matches its parent with errors.Is
type subError struct {
	parent error
	msg    string
}

func (e *subError) Error() string { return e.msg }
func (e *subError) Unwrap() error { return e.parent }

var (
	// ErrValidation marks bad input; never partially applied
	ErrValidation          = errors.New("validation failed")
	ErrUnsupportedFileType = &subError{parent: ErrValidation, msg: "unsupported file type"}

	ErrUnauthorized       = errors.New("invalid or missing agent token")
	ErrInvalidCredentials = &subError{parent: ErrUnauthorized, msg: "invalid credentials"}
	ErrForbidden          = errors.New("session belongs to a different agent")

	ErrNotFound        = errors.New("not found")
	ErrAgentNotFound   = &subError{parent: ErrNotFound, msg: "agent not found"}
	ErrSessionNotFound = &subError{parent: ErrNotFound, msg: "session not found"}

	// Dependency failures
	ErrIngestionFailed = errors.New("ingestion failed")
	ErrEmbeddingFailed = errors.New("embedding failed")
	ErrChatFailed      = errors.New("chat failed")
)
