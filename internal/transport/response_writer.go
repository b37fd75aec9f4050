package transport

import (
	"log"
	"strconv"
	"sync"

	"github.com/panjf2000/gnet/v2"
)

// asyncConn is the slice of gnet.Conn the writer needs. Tests substitute an
// in-memory implementation.
type asyncConn interface {
	AsyncWritev(bs [][]byte, callback gnet.AsyncCallback) error
	Close() error
}

var (
	statusLine200    = []byte("HTTP/1.1 200 OK\r\n")
	headerConnection = []byte("connection: ")
	headerKeepAlive  = []byte("keep-alive\r\n")
	headerClose      = []byte("close\r\n")
	headerSep        = []byte(": ")
	crlf             = []byte("\r\n")
)

// ResponseWriter assembles one HTTP/1.1 response into a single buffer and
// queues it with one vectorized async write.
type ResponseWriter struct {
	conn      asyncConn
	mu        sync.Mutex
	logger    *log.Logger
	keepAlive bool
}

// NewResponseWriter creates a response writer over conn.
func NewResponseWriter(conn asyncConn, logger *log.Logger, keepAlive bool) *ResponseWriter {
	return &ResponseWriter{
		conn:      conn,
		logger:    logger,
		keepAlive: keepAlive,
	}
}

// Reset prepares the writer for the next response on the same connection.
func (w *ResponseWriter) Reset(keepAlive bool) {
	w.mu.Lock()
	w.keepAlive = keepAlive
	w.mu.Unlock()
}

// WriteResponse writes status, headers and body as one response.
func (w *ResponseWriter) WriteResponse(status int, headers [][2]string, body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	expected := 64 + len(body)
	for _, h := range headers {
		expected += len(h[0]) + len(h[1]) + 4
	}
	buf := make([]byte, 0, expected)

	if status == 200 {
		buf = append(buf, statusLine200...)
	} else {
		buf = append(buf, "HTTP/1.1 "...)
		buf = strconv.AppendInt(buf, int64(status), 10)
		buf = append(buf, ' ')
		buf = append(buf, statusText(status)...)
		buf = append(buf, crlf...)
	}

	hasContentLength := false
	for _, h := range headers {
		if h[0] == "content-length" {
			hasContentLength = true
			break
		}
	}
	if !hasContentLength {
		buf = append(buf, "content-length: "...)
		buf = strconv.AppendInt(buf, int64(len(body)), 10)
		buf = append(buf, crlf...)
	}

	for _, h := range headers {
		buf = append(buf, h[0]...)
		buf = append(buf, headerSep...)
		buf = append(buf, h[1]...)
		buf = append(buf, crlf...)
	}

	buf = append(buf, headerConnection...)
	if w.keepAlive {
		buf = append(buf, headerKeepAlive...)
	} else {
		buf = append(buf, headerClose...)
	}
	buf = append(buf, crlf...)
	buf = append(buf, body...)

	return w.conn.AsyncWritev([][]byte{buf}, func(_ gnet.Conn, err error) error {
		if err != nil && w.logger != nil {
			w.logger.Printf("AsyncWritev callback error: %v", err)
		}
		return nil
	})
}

// statusText returns the status text for the codes this transport emits.
func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 411:
		return "Length Required"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
