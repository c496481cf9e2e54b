package domain

import (
	"fmt"
	"strings"
)

// MaxHistoryTurns is how many trailing conversation turns reach the prompt.
const MaxHistoryTurns = 3

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is one prior message supplied by the caller.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Normalize folds case and surrounding space ("User " becomes "user").
func (r Role) Normalize() Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// Validate checks the role is known, ignoring case.
func (t ConversationTurn) Validate() error {
	switch t.Role.Normalize() {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, t.Role)
	}
}

// Label renders the role with its first letter capitalized ("User", "Assistant").
func (r Role) Label() string {
	s := string(r.Normalize())
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// LastTurns returns at most n trailing turns, in chronological order.
func LastTurns(history []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
