package domain

import "context"

// Role is the author of a chat message.
type Role string

// Chat roles understood by the generation backends.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to the generation service.
type Message struct {
	Role    Role
	Content string
}

// GenerationRequest is the generation service request: a system message plus ordered messages.
type GenerationRequest struct {
	System   string
	Messages []Message
}

// Generator is the generation service contract. Implementations return the reply text verbatim.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
