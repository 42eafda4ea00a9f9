package session

import (
	"sync"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// journal keeps the most recent transitions of a session, overwriting the oldest.
type journal struct {
	mu      sync.Mutex
	buf     mpmc.RichOverlappedRingBuffer[Transition]
	dropped uint32
}

func newJournal(size uint32) *journal {
	return &journal{buf: mpmc.NewOverlappedRingBuffer[Transition](size)}
}

func (j *journal) record(t Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	overwrites, err := j.buf.EnqueueM(t)
	j.dropped += overwrites
	return err
}

// snapshot returns the retained transitions oldest first and leaves them in place.
func (j *journal) snapshot() []Transition {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Transition
	for !j.buf.IsEmpty() {
		t, err := j.buf.Dequeue()
		if err != nil {
			break
		}
		out = append(out, t)
	}
	for _, t := range out {
		_, _ = j.buf.EnqueueM(t)
	}
	return out
}

// droppedCount returns how many transitions were overwritten.
func (j *journal) droppedCount() uint32 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}
