package chat

import domain "github.com/example/room-chat-broker/domain/chat"

// History is the ordered message log of one room.
//
// With a capacity of zero the log is unbounded. A positive capacity turns it
// into a ring buffer that drops the oldest message once full. History is not
// safe for concurrent use; the Registry guards it.
type History struct {
	buf      []domain.Message
	start    int
	size     int
	capacity int
}

// NewHistory creates a history buffer. capacity <= 0 means unbounded.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	h := &History{capacity: capacity}
	if capacity > 0 {
		h.buf = make([]domain.Message, capacity)
	}
	return h
}

// Append adds a message at the end of the log.
func (h *History) Append(msg domain.Message) {
	if h.capacity == 0 {
		h.buf = append(h.buf, msg)
		h.size++
		return
	}

	if h.size < h.capacity {
		h.buf[(h.start+h.size)%h.capacity] = msg
		h.size++
		return
	}

	// Full: overwrite the oldest slot.
	h.buf[h.start] = msg
	h.start = (h.start + 1) % h.capacity
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	return h.size
}

// Last returns the most recent message.
func (h *History) Last() (domain.Message, bool) {
	if h.size == 0 {
		return domain.Message{}, false
	}
	if h.capacity == 0 {
		return h.buf[h.size-1], true
	}
	return h.buf[(h.start+h.size-1)%h.capacity], true
}

// Snapshot returns a copy of all retained messages in append order.
func (h *History) Snapshot() []domain.Message {
	return h.Tail(0)
}

// Tail returns a copy of the newest limit messages in append order.
// limit <= 0 returns everything.
func (h *History) Tail(limit int) []domain.Message {
	n := h.size
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]domain.Message, n)
	if h.capacity == 0 {
		copy(result, h.buf[h.size-n:])
		return result
	}

	first := h.start + h.size - n
	for i := 0; i < n; i++ {
		result[i] = h.buf[(first+i)%h.capacity]
	}
	return result
}
