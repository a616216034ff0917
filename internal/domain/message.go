package domain

import "fmt"

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether r is a known role
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts a raw string to a MessageRole
func ParseRole(s string) (MessageRole, error) {
	r := MessageRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

// Message is a single immutable chat entry. Timestamp is epoch milliseconds
// assigned by the session store at append time.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}
