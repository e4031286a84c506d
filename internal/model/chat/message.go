package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	// UserName is the author recorded for messages typed by the end user.
	UserName = "You"
	// SystemName authors the synthetic introduction prompt. It never appears in the transcript.
	SystemName = "System"
)

// Message is one immutable line of the conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage stamps a message with a time-ordered identifier.
func NewMessage(author, text string) Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Message{
		ID:        id.String(),
		Author:    author,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Tail returns the last n messages. The result aliases the input slice.
func Tail(messages []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// RecentAuthors collects the distinct authors among the last n messages.
func RecentAuthors(messages []Message, n int) map[string]struct{} {
	authors := make(map[string]struct{}, n)
	for _, msg := range Tail(messages, n) {
		authors[msg.Author] = struct{}{}
	}
	return authors
}
