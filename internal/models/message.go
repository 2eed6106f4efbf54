package models

import "time"

// Message is one entry of a conversation. Text of an assistant message grows while IsStreaming is true;
// user messages never change once appended.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time

	IsStreaming bool
}

// Sender identifies who authored a message.
type Sender string

// Role is the participant role used on the wire by chat-completion APIs.
type Role string

const (
	// SenderUser is the person using the app.
	SenderUser Sender = "user"
	// SenderAssistant is Sakhi, the companion.
	SenderAssistant Sender = "assistant"

	// RoleSystem carries the persona instruction prepended to every request.
	RoleSystem Role = "system"
	// RoleUser maps SenderUser.
	RoleUser Role = "user"
	// RoleAssistant maps SenderAssistant.
	RoleAssistant Role = "assistant"
)

// Streaming states of a message, as rendered into the data-state attribute and SSE payloads.
const (
	// StreamingStateStreaming marks an assistant message that is still receiving chunks.
	StreamingStateStreaming = "streaming"
	// StreamingStateEnded marks a message whose text is final.
	StreamingStateEnded = "ended"
)

// Role returns the wire role for the sender.
func (s Sender) Role() Role {
	if s == SenderUser {
		return RoleUser
	}
	return RoleAssistant
}

// StreamingState returns the state name used by templates and SSE clients.
func (m Message) StreamingState() string {
	if m.IsStreaming {
		return StreamingStateStreaming
	}
	return StreamingStateEnded
}
