package jsonbody

import (
	"bytes"
	"strings"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/albertbausili/jsonbody/internal/window"
)

// compressMinSize is the smallest payload worth compressing; below this the
// encoding overhead outweighs the savings.
const compressMinSize = 1024

// Response holds an encoded JSON payload and serves it to the transport
// either whole or in caller-sized windows. A Response is valid once a
// non-empty payload has been set.
type Response struct {
	status  int
	payload []byte
	sent    int
}

// NewResponse creates an empty JSON response with status 200.
func NewResponse() *Response {
	return &Response{status: 200}
}

// SetStatus overrides the response status code.
func (r *Response) SetStatus(status int) { r.status = status }

// SetRoot encodes v as the response payload.
func (r *Response) SetRoot(v interface{}) error {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode JSON response")
	}
	r.payload = data
	r.sent = 0
	return nil
}

// SetRaw sets an already-encoded payload.
func (r *Response) SetRaw(data []byte) {
	r.payload = data
	r.sent = 0
}

// Valid reports whether the response carries a payload.
func (r *Response) Valid() bool { return len(r.payload) > 0 }

// Len returns the payload length in bytes.
func (r *Response) Len() int { return len(r.payload) }

// Fill copies the next window of the payload into dst, advancing the send
// cursor by the number of bytes copied. It returns zero once the payload is
// exhausted. Transports that pull response data in bounded windows call
// Fill repeatedly with their own buffer.
func (r *Response) Fill(dst []byte) int {
	if !r.Valid() || r.sent >= len(r.payload) || len(dst) == 0 {
		return 0
	}
	c := window.New(dst, 0)
	_, _ = c.Write(r.payload[r.sent:])
	r.sent += c.Written()
	return c.Written()
}

// EncodedSender is implemented by transports that can attach a
// Content-Encoding to the response. Transports without it always receive
// identity-encoded payloads.
type EncodedSender interface {
	SendEncoded(status int, contentType, encoding string, body []byte) error
}

// Send writes the response through req in one shot, brotli-compressing the
// payload when the client accepts it, the transport can declare the
// encoding, and the payload is large enough to benefit.
func (r *Response) Send(req Request) error {
	if !r.Valid() {
		return req.Send(500, "text/plain", []byte("Empty JSON response"))
	}

	body := r.payload
	if es, ok := req.(EncodedSender); ok &&
		len(body) >= compressMinSize && acceptsBrotli(req.Header("Accept-Encoding")) {
		if compressed, err := brotliEncode(body); err == nil && len(compressed) < len(body) {
			return es.SendEncoded(r.status, MimeType, "br", compressed)
		}
	}
	return req.Send(r.status, MimeType, body)
}

func acceptsBrotli(acceptEncoding string) bool {
	for _, enc := range strings.Split(acceptEncoding, ",") {
		enc = strings.TrimSpace(enc)
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = strings.TrimSpace(enc[:i])
		}
		if strings.EqualFold(enc, "br") {
			return true
		}
	}
	return false
}

func brotliEncode(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
