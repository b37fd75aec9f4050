package jsonbody

// fakeRequest implements Request for handler tests.
type fakeRequest struct {
	method      string
	path        string
	contentType string
	headers     map[string]string
	dead        bool

	sends      int
	sentStatus int
	sentType   string
	sentBody   []byte
}

func newFakeRequest(method, path string) *fakeRequest {
	return &fakeRequest{
		method:      method,
		path:        path,
		contentType: MimeType,
		headers:     map[string]string{},
	}
}

func (r *fakeRequest) Method() string      { return r.method }
func (r *fakeRequest) Path() string        { return r.path }
func (r *fakeRequest) ContentType() string { return r.contentType }

func (r *fakeRequest) Header(name string) string { return r.headers[name] }

func (r *fakeRequest) Send(status int, contentType string, body []byte) error {
	r.sends++
	r.sentStatus = status
	r.sentType = contentType
	r.sentBody = append([]byte(nil), body...)
	return nil
}

func (r *fakeRequest) Alive() bool { return !r.dead }

// deliver feeds body to h in sequential chunks of at most chunkLen bytes.
func deliver(h Handler, req Request, body []byte, chunkLen int) {
	total := len(body)
	for off := 0; off < total; off += chunkLen {
		end := off + chunkLen
		if end > total {
			end = total
		}
		h.HandleBody(req, body[off:end], off, total)
	}
}
