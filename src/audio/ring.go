package audio

import (
	"sync"
)

// frameRing buffers frames between the tick loop and a device that pulls at
// its own rate. Neither side ever blocks: a full ring overwrites the oldest
// frame, an empty ring repeats the last frame popped.
type frameRing struct {
	sync.Mutex
	frames  []SampleFrame
	head    int // next write position
	size    int
	last    SampleFrame
	held    int64 // pops served by repeating the last frame
	dropped int64 // pushes that overwrote an unread frame
}

func newFrameRing(capacity int) *frameRing {
	return &frameRing{
		frames: make([]SampleFrame, capacity),
	}
}

func (r *frameRing) push(f SampleFrame) {
	r.Lock()
	r.frames[r.head] = f
	r.head = (r.head + 1) % len(r.frames)
	if r.size < len(r.frames) {
		r.size++
	} else {
		r.dropped++
	}
	r.Unlock()
}

func (r *frameRing) pop() SampleFrame {
	r.Lock()
	defer r.Unlock()
	if r.size == 0 {
		r.held++
		return r.last
	}
	tail := (r.head - r.size + len(r.frames)) % len(r.frames)
	r.size--
	r.last = r.frames[tail]
	return r.last
}

func (r *frameRing) stats() (held int64, dropped int64) {
	r.Lock()
	defer r.Unlock()
	return r.held, r.dropped
}
