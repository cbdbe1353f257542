package sim

import "github.com/san-kum/pidlab/internal/dynamo"

// History is a fixed-capacity ring of the most recent samples.
type History struct {
	buf  []dynamo.Sample
	next int
	full bool
}

func NewHistory(capacity int) *History {
	return &History{buf: make([]dynamo.Sample, capacity)}
}

func (h *History) Push(s dynamo.Sample) {
	if len(h.buf) == 0 {
		return
	}
	h.buf[h.next] = s
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

func (h *History) Len() int {
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Samples returns the retained samples, oldest first.
func (h *History) Samples() []dynamo.Sample {
	out := make([]dynamo.Sample, 0, h.Len())
	if h.full {
		out = append(out, h.buf[h.next:]...)
	}
	return append(out, h.buf[:h.next]...)
}

func (h *History) Clear() {
	h.next = 0
	h.full = false
}
