package transport

import (
	"sync"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

// Frame is an encoded outbound message.
type Frame struct {
	Type domain.MessageType
	Data []byte
}

func NewFrame(ev domain.Event) (Frame, error) {
	data, err := ev.Encode()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: ev.Type, Data: data}, nil
}

// Queue is a bounded per-connection FIFO of outbound frames.
//
// Push never blocks. When the queue is full the oldest non-critical frame is
// evicted; the number of evictions is reported to the reader as a single
// ResourceExhausted frame ahead of the next queued frame.
type Queue struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
	pending  int
	total    uint64
	closed   bool
	ready    chan struct{}
	onDrop   func()
}

func NewQueue(capacity int, onDrop func()) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Queue{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		onDrop:   onDrop,
	}
}

// Push enqueues f. It reports false when the queue is closed or f itself was
// the frame dropped to make room.
func (q *Queue) Push(f Frame) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	accepted, dropped := true, false
	if len(q.frames) < q.capacity {
		q.frames = append(q.frames, f)
	} else {
		dropped = true
		victim := -1
		for i, queued := range q.frames {
			if !queued.Type.Critical() {
				victim = i
				break
			}
		}
		switch {
		case victim >= 0:
			q.frames = append(q.frames[:victim], q.frames[victim+1:]...)
			q.frames = append(q.frames, f)
		case !f.Type.Critical():
			accepted = false
		default:
			q.frames = append(q.frames[:0], q.frames[1:]...)
			q.frames = append(q.frames, f)
		}
		q.pending++
		q.total++
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	if dropped {
		q.onDrop()
	}
	return accepted
}

// Pop returns the next frame without blocking. A pending overflow notice is
// returned before any queued frame.
func (q *Queue) Pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending > 0 {
		n := q.pending
		q.pending = 0
		frame, err := NewFrame(domain.ResourceExhaustedEvent(n))
		if err == nil {
			return frame, true
		}
	}
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames[0] = Frame{}
	q.frames = q.frames[1:]
	return f, true
}

// Ready is signalled after every Push.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Close rejects further pushes. Frames already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns the number of frames evicted over the queue's lifetime.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
