package jsonbody

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// CallbackHandler accumulates a JSON request body and, once complete, parses
// it and invokes the registered Consumer exactly once with the parsed root.
// The consumer is responsible for sending the response; the handler only
// responds itself on failure.
type CallbackHandler struct {
	base      handlerBase
	onRequest Consumer
}

// NewCallbackHandler creates a one-shot JSON handler for uri with default
// configuration.
func NewCallbackHandler(uri string, fn Consumer) *CallbackHandler {
	return NewCallbackHandlerWithConfig(uri, fn, DefaultConfig())
}

// NewCallbackHandlerWithConfig creates a one-shot JSON handler with full
// configuration.
func NewCallbackHandlerWithConfig(uri string, fn Consumer, config Config) *CallbackHandler {
	return &CallbackHandler{
		base:      newHandlerBase(uri, config),
		onRequest: fn,
	}
}

// OnRequest replaces the consumer callback.
func (h *CallbackHandler) OnRequest(fn Consumer) { h.onRequest = fn }

// CanHandle reports whether this handler wants the request.
func (h *CallbackHandler) CanHandle(req Request) bool {
	if h.onRequest == nil {
		return false
	}
	return h.base.matches(req)
}

// HandleBody buffers one offset-addressed chunk of the request body.
func (h *CallbackHandler) HandleBody(req Request, data []byte, offset, total int) {
	h.base.accumulate(req, data, offset, total)
}

// HandleRequest consumes the accumulated body: parse, invoke the consumer
// once, release the buffer. The buffer is released on every exit path of its
// owning request so it can never leak into the next cycle.
func (h *CallbackHandler) HandleRequest(req Request) {
	err := h.consume(req)
	if h.base.owns(req) {
		h.base.releaseBuffer()
	}

	status := StatusOf(err)
	observeRequest("callback", status)
	if err != nil {
		h.base.config.Logger.Printf("json handler %s: %v", req.Path(), err)
		_ = req.Send(status, "text/plain", []byte(statusMessage(status)))
	}
}

// consume runs the guard ladder and, if the body is usable, the parse and
// the callback. Guard order is significant: configuration errors win over
// size errors, which win over body errors. A request that does not own the
// buffered cycle never sees its contents.
func (h *CallbackHandler) consume(req Request) error {
	if h.onRequest == nil {
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

	buf := h.base.acc.Bytes()
	// Get is lazy, so structural errors are caught up front.
	if !jsoniter.Valid(buf) {
		return errors.Wrap(ErrMalformed, "invalid JSON document")
	}
	root := jsoniter.Get(buf)
	if root.ValueType() == jsoniter.InvalidValue {
		return ErrMalformed
	}
	if perr := root.LastError(); perr != nil {
		return errors.Wrap(ErrMalformed, perr.Error())
	}

	h.onRequest(req, root)
	return nil
}

// HandleAbort releases the buffer on abnormal teardown of the owning
// request. Aborts of other requests leave the active cycle untouched.
func (h *CallbackHandler) HandleAbort(req Request) {
	if h.base.owner != nil && h.base.owner == req {
		h.base.releaseBuffer()
	}
}
