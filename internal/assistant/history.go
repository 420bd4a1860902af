package assistant

import (
	"sync"
)

// MaxHistory is the number of messages a session keeps.
const MaxHistory = 10

// History is a fixed-size ring of messages. When full, appending evicts the
// oldest message.
type History struct {
	buf  []Message
	size int
	head int // next write position
	n    int
	mu   sync.RWMutex
}

// NewHistory creates a history holding at most size messages.
func NewHistory(size int) *History {
	if size <= 0 {
		size = MaxHistory
	}
	return &History{
		buf:  make([]Message, size),
		size: size,
	}
}

// Append records msg, evicting the oldest entry when the ring is full.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.head] = msg
	h.head = (h.head + 1) % h.size
	if h.n < h.size {
		h.n++
	}
}

// Messages returns the messages oldest first.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, 0, h.n)
	start := (h.head - h.n + h.size) % h.size
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(start+i)%h.size])
	}
	return out
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.n == 0 {
		return Message{}, false
	}
	return h.buf[(h.head-1+h.size)%h.size], true
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Capacity returns the maximum number of stored messages.
func (h *History) Capacity() int {
	return h.size
}

// Reset clears the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.buf)
	h.head = 0
	h.n = 0
}
