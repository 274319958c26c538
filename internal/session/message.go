// ABOUTME: Message is one immutable conversational turn in the session log.
// ABOUTME: Turns are created once, at submit or response-arrival time, and never mutated.

package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational turn. Fields are set at creation and
// never change after the message is appended to the log.
type Message struct {
	ID        string
	Role      Role
	Content   string // markdown-formatted when Role is assistant
	Timestamp time.Time

	// Agent labels which backend agent produced an assistant turn.
	Agent string
	// Image is the inline-encoded payload a user attached, if any.
	Image string
	// RequiresValidation marks assistant turns the backend flagged for
	// human review.
	RequiresValidation bool
}

// NewUserMessage creates a user turn from submitted draft content.
func NewUserMessage(content, image string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Image:     image,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant turn at response-arrival time.
func NewAssistantMessage(content, agent string, requiresValidation bool) Message {
	return Message{
		ID:                 uuid.New().String(),
		Role:               RoleAssistant,
		Content:            content,
		Agent:              agent,
		RequiresValidation: requiresValidation,
		Timestamp:          time.Now(),
	}
}
