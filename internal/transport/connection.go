package transport

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/albertbausili/jsonbody/pkg/jsonbody"
)

// errCloseRequested signals a normal connection close after a response with
// Connection: close.
var errCloseRequested = fmt.Errorf("connection close requested")

// Connection drives one HTTP/1.1 connection: it parses request heads, feeds
// body bytes to the claiming handler as they arrive, and dispatches
// HandleRequest once the body is complete.
type Connection struct {
	conn     asyncConn
	parser   *Parser
	writer   *ResponseWriter
	handlers []jsonbody.Handler
	logger   *log.Logger
	buffer   bytes.Buffer
	req      Request

	// per-exchange state
	ex       *exchange
	handler  jsonbody.Handler
	inBody   bool
	bodyRead int64
}

// NewConnection creates a connection that dispatches to handlers.
func NewConnection(c asyncConn, handlers []jsonbody.Handler, logger *log.Logger) *Connection {
	return &Connection{
		conn:     c,
		parser:   NewParser(),
		writer:   NewResponseWriter(c, logger, true),
		handlers: handlers,
		logger:   logger,
	}
}

// HandleData processes incoming bytes. Body bytes are handed to the
// claiming handler immediately, offset-addressed, without waiting for the
// full body.
func (c *Connection) HandleData(data []byte) error {
	c.buffer.Write(data)

	for {
		if !c.inBody {
			advanced, err := c.parseHead()
			if err != nil || !advanced {
				return err
			}
			continue
		}

		n := int64(c.buffer.Len())
		if remaining := c.req.ContentLength - c.bodyRead; n > remaining {
			n = remaining
		}
		if n == 0 && c.bodyRead < c.req.ContentLength {
			return nil // wait for more body data
		}
		if n > 0 {
			chunk := c.buffer.Next(int(n))
			if c.handler != nil {
				c.handler.HandleBody(c.ex, chunk, int(c.bodyRead), int(c.req.ContentLength))
			}
			c.bodyRead += n
		}
		if c.bodyRead < c.req.ContentLength {
			return nil
		}
		if err := c.dispatch(); err != nil {
			return err
		}
	}
}

// parseHead parses one request head from the pending buffer. It reports
// whether the connection state advanced; false with a nil error means more
// data is needed.
func (c *Connection) parseHead() (bool, error) {
	if c.buffer.Len() == 0 {
		return false, nil
	}

	c.parser.Reset(c.buffer.Bytes())
	c.req.Reset()
	consumed, err := c.parser.ParseRequest(&c.req)
	if err != nil {
		c.logger.Printf("parse error: %v", err)
		_ = c.writer.WriteResponse(400, textPlainHeaders, []byte("Bad Request"))
		return false, errCloseRequested
	}
	if consumed == 0 {
		return false, nil
	}
	c.buffer.Next(consumed)

	c.writer.Reset(c.req.KeepAlive)
	c.ex = newExchange(&c.req, c.writer)
	c.handler = c.claim(c.ex)
	c.bodyRead = 0

	if c.req.ChunkedEncoding {
		// The engine needs the total up front; chunked bodies have none.
		_ = c.writer.WriteResponse(411, textPlainHeaders, []byte("Length Required"))
		return false, errCloseRequested
	}

	if c.req.ContentLength == 0 {
		return true, c.dispatch()
	}
	c.inBody = true
	return true, nil
}

// claim returns the first handler that wants the exchange, or nil.
func (c *Connection) claim(ex *exchange) jsonbody.Handler {
	for _, h := range c.handlers {
		if h.CanHandle(ex) {
			return h
		}
	}
	return nil
}

// dispatch completes the current exchange and prepares for the next
// pipelined request.
func (c *Connection) dispatch() error {
	c.inBody = false
	if c.handler != nil {
		c.handler.HandleRequest(c.ex)
	} else {
		_ = c.writer.WriteResponse(404, textPlainHeaders, []byte("Not Found"))
	}
	if !c.req.KeepAlive {
		return errCloseRequested
	}
	return nil
}

// Abort tears down the connection: the exchange is marked dead before the
// handler is told, so no consumer callback can observe a live handle.
func (c *Connection) Abort() {
	if c.ex != nil {
		c.ex.markDead()
		if c.handler != nil {
			c.handler.HandleAbort(c.ex)
		}
	}
	c.handler = nil
	c.ex = nil
	c.inBody = false
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}

var textPlainHeaders = [][2]string{{"content-type", "text/plain; charset=utf-8"}}

// exchange is the jsonbody.Request implementation handed to handlers.
type exchange struct {
	method      string
	path        string
	contentType string
	headers     [][2]string
	writer      *ResponseWriter
	dead        atomic.Bool
}

func newExchange(req *Request, writer *ResponseWriter) *exchange {
	headers := make([][2]string, len(req.Headers))
	copy(headers, req.Headers)
	return &exchange{
		method:      req.Method,
		path:        req.Path,
		contentType: req.ContentType,
		headers:     headers,
		writer:      writer,
	}
}

func (e *exchange) Method() string      { return e.method }
func (e *exchange) Path() string        { return e.path }
func (e *exchange) ContentType() string { return e.contentType }

// Header returns the value of the named header, or "".
func (e *exchange) Header(name string) string {
	for _, h := range e.headers {
		if strings.EqualFold(h[0], name) {
			return h[1]
		}
	}
	return ""
}

// Send writes one response for this exchange.
func (e *exchange) Send(status int, contentType string, body []byte) error {
	if e.dead.Load() {
		return fmt.Errorf("exchange closed")
	}
	return e.writer.WriteResponse(status, [][2]string{{"content-type", contentType}}, body)
}

// SendEncoded writes one response carrying a Content-Encoding.
func (e *exchange) SendEncoded(status int, contentType, encoding string, body []byte) error {
	if e.dead.Load() {
		return fmt.Errorf("exchange closed")
	}
	headers := [][2]string{
		{"content-type", contentType},
		{"content-encoding", encoding},
	}
	return e.writer.WriteResponse(status, headers, body)
}

// Alive reports whether the exchange is still open.
func (e *exchange) Alive() bool { return !e.dead.Load() }

func (e *exchange) markDead() { e.dead.Store(true) }
