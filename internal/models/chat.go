package models

import "fmt"

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one role-tagged message of a conversation history.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks that the turn carries a supported role.
func (t ChatTurn) Validate() error {
	switch t.Role {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("unsupported role %q", t.Role)
	}
}

// ValidateHistory validates every turn of a history.
func ValidateHistory(history []ChatTurn) error {
	for i, turn := range history {
		if err := turn.Validate(); err != nil {
			return fmt.Errorf("history[%d]: %w", i, err)
		}
	}
	return nil
}
