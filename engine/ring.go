// Package engine turns sampler output into scored, tracked, retained
// process history: the scorer (§4.2), the ring buffer (§4.3), and the
// band-transition tracker (§4.4). The runtime that wires them together with
// storage and the push server lives in package daemon.
package engine

import (
	"github.com/rogue-hunter/roguehunter/model"
)

// Ring is a fixed-capacity FIFO of SampleSets (§4.3). Not safe for
// concurrent use; the daemon's single sampling goroutine owns it.
type Ring struct {
	buf   []model.RingSample
	head  int
	count int
}

// NewRing returns a Ring with the given fixed capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]model.RingSample, capacity)}
}

// Push appends a sample, evicting the oldest entry once at capacity.
func (r *Ring) Push(s model.RingSample) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = s
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	return r.count
}

// IsEmpty reports whether the ring holds no samples.
func (r *Ring) IsEmpty() bool {
	return r.count == 0
}

// Samples returns a copy of the samples in insertion (oldest-first) order.
func (r *Ring) Samples() []model.RingSample {
	out := make([]model.RingSample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
}

// Freeze returns an immutable, value-copied snapshot of the ring's current
// contents, suitable for handing to the forensics pipeline without risk of
// a later Push mutating what the pipeline reads.
func (r *Ring) Freeze() model.BufferContents {
	return model.BufferContents{Samples: r.Samples()}
}
