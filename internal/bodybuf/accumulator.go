// Package bodybuf implements the single-slot body accumulator: one lazily
// allocated, size-capped buffer that collects offset-addressed chunks of a
// request body and is reused across request cycles.
package bodybuf

import "github.com/pkg/errors"

var (
	// ErrEmpty is returned when the announced total length is zero.
	ErrEmpty = errors.New("empty body")
	// ErrTooLarge is returned when the announced total exceeds the cap.
	ErrTooLarge = errors.New("body exceeds maximum content length")
	// ErrAllocation is returned when the buffer could not be allocated.
	// The accumulator stays not-ready; the condition is recoverable.
	ErrAllocation = errors.New("body buffer allocation failed")
)

// Accumulator owns one reusable buffer for at most one in-flight request
// body. It is not safe for concurrent use; each handler instance owns
// exactly one and drives it from a single event-loop goroutine.
type Accumulator struct {
	max   int
	buf   []byte
	total int
	ready bool

	// alloc is the allocation hook; tests simulate allocation failure
	// by swapping it. A nil return is treated as allocation failure.
	alloc func(n int) []byte
}

// New creates an Accumulator whose buffer never exceeds max bytes.
func New(max int) *Accumulator {
	return &Accumulator{
		max:   max,
		alloc: func(n int) []byte { return make([]byte, n) },
	}
}

// Begin sizes the buffer for a request body of total bytes. It allocates
// only when no buffer exists for this cycle; a buffer retained from an
// earlier cycle is reused when its capacity suffices. Begin is a no-op when
// the accumulator is already ready.
func (a *Accumulator) Begin(total int) error {
	if a.ready {
		return nil
	}
	if total <= 0 {
		return ErrEmpty
	}
	if total > a.max {
		return ErrTooLarge
	}
	if cap(a.buf) < total {
		b := a.alloc(total)
		if b == nil {
			return ErrAllocation
		}
		a.buf = b
	}
	a.buf = a.buf[:total]
	a.total = total
	a.ready = true
	return nil
}

// Write places data at offset inside the buffer. A write whose window would
// overflow the buffer is dropped whole; it is never partially applied, so
// adjacent valid data cannot be corrupted. The return value reports whether
// the write was applied.
func (a *Accumulator) Write(data []byte, offset int) bool {
	if !a.ready || len(data) == 0 {
		return false
	}
	if offset < 0 || offset+len(data) > a.total {
		return false
	}
	copy(a.buf[offset:], data)
	return true
}

// Ready reports whether the buffer is allocated and sized for the current
// request cycle.
func (a *Accumulator) Ready() bool { return a.ready }

// Total returns the announced body length for the current cycle, or zero.
func (a *Accumulator) Total() int { return a.total }

// Bytes returns the accumulated body. The view is valid until Reset.
func (a *Accumulator) Bytes() []byte {
	if !a.ready {
		return nil
	}
	return a.buf[:a.total]
}

// Reset ends the request cycle: readiness and size bookkeeping are cleared
// while the allocation is retained for reuse. Reset is idempotent and must
// be called on every exit path.
func (a *Accumulator) Reset() {
	a.ready = false
	a.total = 0
}
