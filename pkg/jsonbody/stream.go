package jsonbody

import "sync"

// StreamHandler accumulates a JSON request body and re-emits it to a
// StreamConsumer in fixed-size slices across scheduler ticks, so a large
// payload never holds the event loop for one long pass. Control returns to
// the loop between slices; with ImmediateScheduler all slices collapse into
// one synchronous delivery.
type StreamHandler struct {
	base     handlerBase
	onStream StreamConsumer

	// mu guards the streaming cursor across the scheduler-tick boundary:
	// ticks fire on timer goroutines while aborts arrive from the event
	// loop. Everything else in the handler is single-threaded.
	mu           sync.Mutex
	req          Request
	processIndex int
	cancel       CancelFunc
}

// NewStreamHandler creates a streaming JSON handler for uri with default
// configuration.
func NewStreamHandler(uri string, fn StreamConsumer) *StreamHandler {
	return NewStreamHandlerWithConfig(uri, fn, DefaultConfig())
}

// NewStreamHandlerWithConfig creates a streaming JSON handler with full
// configuration.
func NewStreamHandlerWithConfig(uri string, fn StreamConsumer, config Config) *StreamHandler {
	return &StreamHandler{
		base:     newHandlerBase(uri, config),
		onStream: fn,
	}
}

// OnRequest replaces the stream consumer callback.
func (h *StreamHandler) OnRequest(fn StreamConsumer) { h.onStream = fn }

// CanHandle reports whether this handler wants the request.
func (h *StreamHandler) CanHandle(req Request) bool {
	if h.onStream == nil {
		return false
	}
	return h.base.matches(req)
}

// HandleBody buffers one offset-addressed chunk of the request body. A new
// body is rejected, not queued, while a previous cycle's buffer is still
// being delivered.
func (h *StreamHandler) HandleBody(req Request, data []byte, offset, total int) {
	h.mu.Lock()
	streaming := h.req != nil
	h.mu.Unlock()
	if streaming {
		dropChunk(dropBusy)
		return
	}
	h.base.accumulate(req, data, offset, total)
}

// HandleRequest starts sliced delivery of the accumulated body. Guard
// failures are answered immediately and release the owning cycle's buffer.
func (h *StreamHandler) HandleRequest(req Request) {
	if err := h.guard(req); err != nil {
		if h.base.owns(req) {
			h.base.releaseBuffer()
		}
		status := StatusOf(err)
		observeRequest("stream", status)
		h.base.config.Logger.Printf("json stream handler %s: %v", req.Path(), err)
		_ = req.Send(status, "text/plain", []byte(statusMessage(status)))
		return
	}

	observeRequest("stream", 200)
	h.mu.Lock()
	h.req = req
	h.processIndex = 0
	h.mu.Unlock()
	h.tick()
}

// guard mirrors the one-shot ladder: unconfigured, oversize, not-ready. A
// request that does not own the buffered cycle never streams its contents.
func (h *StreamHandler) guard(req Request) error {
	if h.onStream == nil {
		return ErrUnconfigured
	}
	if !h.base.owns(req) {
		return ErrNotReady
	}
	if h.base.total > h.base.config.MaxContentLength {
		return ErrTooLarge
	}
	if !h.base.acc.Ready() {
		return ErrNotReady
	}
	return nil
}

// tick emits one slice and schedules the next. Slices advance strictly in
// order; no slice is skipped or repeated.
func (h *StreamHandler) tick() {
	h.mu.Lock()
	h.cancel = nil
	req := h.req
	total := h.base.acc.Total()
	if req == nil || !req.Alive() || !h.base.acc.Ready() || h.processIndex >= total {
		h.finishLocked()
		h.mu.Unlock()
		return
	}
	n := total - h.processIndex
	if n > h.base.config.ChunkSize {
		n = h.base.config.ChunkSize
	}
	view := h.base.acc.Bytes()[h.processIndex : h.processIndex+n]
	h.processIndex += n
	more := h.processIndex < total
	h.mu.Unlock()

	streamTicksTotal.Inc()
	h.onStream(req, view)

	h.mu.Lock()
	if h.req == nil {
		// Torn down from within the consumer callback
		h.mu.Unlock()
		return
	}
	if !more {
		h.finishLocked()
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	// Schedule outside the lock: an immediate scheduler re-enters tick
	// synchronously.
	c := h.base.config.Scheduler.Schedule(h.base.config.TickDelay, h.tick)
	h.mu.Lock()
	if h.req != nil {
		h.cancel = c
	} else {
		c()
	}
	h.mu.Unlock()
}

// finishLocked ends the streaming cycle: cancels any pending tick and
// releases the buffer. Idempotent; callers hold mu.
func (h *StreamHandler) finishLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.req = nil
	h.processIndex = 0
	h.base.releaseBuffer()
}

// HandleAbort cancels any pending tick and releases the buffer when the
// aborting request owns the cycle. The consumer is never invoked again for
// that request; aborts of other requests leave the cycle untouched.
func (h *StreamHandler) HandleAbort(req Request) {
	h.mu.Lock()
	if h.base.owner != nil && h.base.owner == req {
		h.finishLocked()
	}
	h.mu.Unlock()
}
