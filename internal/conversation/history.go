package conversation

import "sync"

// Role identifies who produced a Message.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

// Message is one history entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an append-only, chronologically ordered list of messages.
// Entries are never edited or removed once appended.
type History struct {
	mu       sync.Mutex
	messages []Message
}

func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the entries in order.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
