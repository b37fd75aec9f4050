package jsonbody

import (
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/albertbausili/jsonbody/internal/bodybuf"
)

// Request is the transport-side view of one in-flight HTTP exchange. The
// transport owns the underlying connection; handlers only read request
// metadata and send one response through it.
type Request interface {
	Method() string
	Path() string
	ContentType() string
	Header(name string) string
	Send(status int, contentType string, body []byte) error
	// Alive reports whether the exchange is still open. It turns false once
	// the transport tears the request down; consumers are never invoked
	// against a dead exchange.
	Alive() bool
}

// Handler is the interface the transport drives. Body data arrives through
// HandleBody in sequentially ordered, offset-addressed chunks with a
// constant total; HandleRequest fires once after the last chunk.
type Handler interface {
	CanHandle(req Request) bool
	HandleBody(req Request, data []byte, offset, total int)
	HandleRequest(req Request)
	// HandleAbort is called on abnormal teardown of the exchange. It must
	// cancel any pending delivery and release the body buffer, and must be
	// safe to call from within a consumer callback.
	HandleAbort(req Request)
}

// Consumer receives the parsed JSON root exactly once per request. It is
// responsible for producing the response.
type Consumer func(req Request, root jsoniter.Any)

// StreamConsumer receives the raw body in one or more slices. The slice is
// only valid for the duration of the call.
type StreamConsumer func(req Request, chunk []byte)

// handlerBase carries the state shared by both handler variants: request
// matching and the single-slot body accumulator. At most one request is in
// flight per handler instance; a new body is rejected while a previous
// cycle's buffer is still active.
type handlerBase struct {
	uri    string
	config Config
	acc    *bodybuf.Accumulator
	owner  Request
	total  int
}

func newHandlerBase(uri string, config Config) handlerBase {
	_ = config.Validate()
	return handlerBase{
		uri:    uri,
		config: config,
		acc:    bodybuf.New(config.MaxContentLength),
	}
}

// matches implements the request validation shared by both variants:
// method set, URI prefix and JSON content type.
func (b *handlerBase) matches(req Request) bool {
	if !b.methodAllowed(req.Method()) {
		return false
	}
	if b.uri != "" {
		path := req.Path()
		if path != b.uri && !strings.HasPrefix(path, b.uri+"/") {
			return false
		}
	}
	return isJSONContentType(req.ContentType())
}

func (b *handlerBase) methodAllowed(method string) bool {
	for _, m := range b.config.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// accumulate is the shared HandleBody implementation. The first chunk claims
// the cycle for its request; chunks belonging to any other request are
// dropped until releaseBuffer ends the cycle. The announced total is
// recorded even when buffering is refused so that HandleRequest can report
// the right status later.
func (b *handlerBase) accumulate(req Request, data []byte, offset, total int) {
	if !b.owns(req) {
		dropChunk(dropBusy)
		return
	}
	b.owner = req
	b.total = total
	if total == 0 || len(data) == 0 {
		return
	}
	if !b.acc.Ready() {
		if err := b.acc.Begin(total); err != nil {
			// Rejected or failed allocation: the buffer stays not-ready and
			// the failure surfaces when the request is consumed.
			return
		}
	}
	if b.acc.Write(data, offset) {
		bodyBytesBuffered.Observe(float64(len(data)))
	} else {
		dropChunk(dropOutOfBounds)
	}
}

// owns reports whether req may touch the current cycle. A free handler
// (no owner) is claimable by anyone.
func (b *handlerBase) owns(req Request) bool {
	return b.owner == nil || b.owner == req
}

// releaseBuffer ends the request cycle.
func (b *handlerBase) releaseBuffer() {
	b.acc.Reset()
	b.owner = nil
	b.total = 0
}

// isJSONContentType matches the JSON media type case-insensitively,
// ignoring parameters such as "; charset=utf-8".
func isJSONContentType(ct string) bool {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.EqualFold(strings.TrimSpace(ct), MimeType)
}
