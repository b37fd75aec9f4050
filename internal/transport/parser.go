// Package transport provides an HTTP/1.1 transport over gnet that delivers
// request bodies to jsonbody handlers incrementally, as offset-addressed
// chunks, instead of buffering whole requests at the connection layer.
package transport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Request holds the parsed request line and the header fields the body
// engine cares about.
type Request struct {
	Method          string
	Path            string
	Version         string
	Host            string
	Headers         [][2]string // lowercased names
	ContentType     string
	ContentLength   int64
	ChunkedEncoding bool
	KeepAlive       bool
}

// Reset clears the request fields for reuse.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Version = ""
	r.Host = ""
	r.Headers = r.Headers[:0]
	r.ContentType = ""
	r.ContentLength = 0
	r.ChunkedEncoding = false
	r.KeepAlive = false
}

// Parser parses HTTP/1.1 request heads from a byte buffer without copying
// the input.
type Parser struct {
	buf []byte
	pos int
}

// NewParser creates a new HTTP/1.1 parser.
func NewParser() *Parser {
	return &Parser{}
}

// Reset resets the parser with new buffer data.
func (p *Parser) Reset(buf []byte) {
	p.buf = buf
	p.pos = 0
}

// ParseRequest parses the request line and headers from the buffer. It
// returns the number of bytes consumed, zero when more data is needed, or
// an error for malformed input.
func (p *Parser) ParseRequest(req *Request) (int, error) {
	complete, err := p.parseRequestLine(req)
	if err != nil {
		return 0, err
	}
	if !complete {
		return 0, nil
	}

	req.ContentLength = 0
	req.KeepAlive = req.Version == "HTTP/1.1"

	complete, err = p.parseHeaders(req)
	if err != nil {
		return 0, err
	}
	if !complete {
		return 0, nil
	}

	if req.Host == "" {
		return 0, fmt.Errorf("missing Host header")
	}
	return p.pos, nil
}

// parseRequestLine parses METHOD SP PATH SP VERSION CRLF, advancing p.pos.
// Returns complete=false if more data is needed.
func (p *Parser) parseRequestLine(req *Request) (bool, error) {
	lineEnd := bytes.Index(p.buf[p.pos:], []byte("\r\n"))
	if lineEnd == -1 {
		return false, nil
	}
	line := p.buf[p.pos : p.pos+lineEnd]
	p.pos += lineEnd + 2

	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return false, fmt.Errorf("invalid request line")
	}
	req.Method = string(parts[0])
	req.Path = string(parts[1])
	req.Version = string(parts[2])
	if req.Version != "HTTP/1.1" && req.Version != "HTTP/1.0" {
		return false, fmt.Errorf("unsupported HTTP version: %s", req.Version)
	}
	return true, nil
}

// parseHeaders parses headers until CRLF CRLF, advancing p.pos.
// Returns complete=false if more data is needed.
func (p *Parser) parseHeaders(req *Request) (bool, error) {
	for {
		lineEnd := bytes.Index(p.buf[p.pos:], []byte("\r\n"))
		if lineEnd == -1 {
			return false, nil
		}
		line := p.buf[p.pos : p.pos+lineEnd]
		p.pos += lineEnd + 2
		if len(line) == 0 {
			return true, nil
		}
		colonIdx := bytes.IndexByte(line, ':')
		if colonIdx == -1 {
			return false, fmt.Errorf("invalid header line")
		}
		name := strings.ToLower(string(bytes.TrimSpace(line[:colonIdx])))
		value := string(bytes.TrimSpace(line[colonIdx+1:]))
		req.Headers = append(req.Headers, [2]string{name, value})

		switch name {
		case "host":
			req.Host = value
		case "content-type":
			req.ContentType = value
		case "content-length":
			cl, err := strconv.ParseInt(value, 10, 64)
			if err != nil || cl < 0 {
				return false, fmt.Errorf("invalid content-length: %q", value)
			}
			req.ContentLength = cl
		case "transfer-encoding":
			if strings.Contains(strings.ToLower(value), "chunked") {
				req.ChunkedEncoding = true
			}
		case "connection":
			switch {
			case strings.EqualFold(value, "close"):
				req.KeepAlive = false
			case strings.EqualFold(value, "keep-alive"):
				req.KeepAlive = true
			}
		}
	}
}
