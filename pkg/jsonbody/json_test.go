package jsonbody

import (
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func TestCallbackHandlerDeliversOnce(t *testing.T) {
	calls := 0
	var gotRoot jsoniter.Any
	h := NewCallbackHandler("/api/data", func(_ Request, root jsoniter.Any) {
		calls++
		gotRoot = root
	})

	req := newFakeRequest("POST", "/api/data")
	body := []byte(`{"name":"` + strings.Repeat("x", 89) + `"}`)
	if len(body) != 100 {
		t.Fatalf("expected 100-byte body, got %d", len(body))
	}

	// Two 50-byte chunks arriving in order.
	h.HandleBody(req, body[:50], 0, 100)
	h.HandleBody(req, body[50:], 50, 100)
	h.HandleRequest(req)

	if calls != 1 {
		t.Fatalf("Expected consumer invoked exactly once, got %d", calls)
	}
	if gotRoot.Get("name").ToString() != strings.Repeat("x", 89) {
		t.Error("Parsed root does not match accumulated body")
	}
	if req.sends != 0 {
		t.Errorf("Handler should not respond on success, sent status %d", req.sentStatus)
	}
}

func TestCallbackHandlerTooLarge(t *testing.T) {
	called := false
	config := DefaultConfig()
	config.MaxContentLength = 16384
	h := NewCallbackHandlerWithConfig("/api/data", func(_ Request, _ jsoniter.Any) {
		called = true
	}, config)

	req := newFakeRequest("POST", "/api/data")
	h.HandleBody(req, make([]byte, 1000), 0, 20000)
	h.HandleRequest(req)

	if called {
		t.Error("Consumer must not be invoked for oversize body")
	}
	if req.sentStatus != 413 {
		t.Errorf("Expected status 413, got %d", req.sentStatus)
	}
}

func TestCallbackHandlerMalformedJSON(t *testing.T) {
	called := false
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {
		called = true
	})

	req := newFakeRequest("POST", "/api/data")
	body := []byte(`{"name": "unterminated`)
	deliver(h, req, body, 8)
	h.HandleRequest(req)

	if called {
		t.Error("Consumer must not be invoked for malformed payload")
	}
	if req.sentStatus != 400 {
		t.Errorf("Expected status 400, got %d", req.sentStatus)
	}

	// The buffer was released: a repeat consume has no body.
	req2 := newFakeRequest("POST", "/api/data")
	h.HandleRequest(req2)
	if req2.sentStatus != 400 {
		t.Errorf("Expected status 400 for missing body, got %d", req2.sentStatus)
	}
}

func TestCallbackHandlerUnconfigured(t *testing.T) {
	h := NewCallbackHandler("/api/data", nil)

	req := newFakeRequest("POST", "/api/data")
	if h.CanHandle(req) {
		t.Error("Unconfigured handler must not claim requests")
	}

	// Even if the transport dispatches anyway, the status is 500, distinct
	// from body errors.
	deliver(h, req, []byte(`{"a":1}`), 4)
	h.HandleRequest(req)
	if req.sentStatus != 500 {
		t.Errorf("Expected status 500, got %d", req.sentStatus)
	}
}

func TestCallbackHandlerGuardOrder(t *testing.T) {
	// Oversize body on an unconfigured handler: unconfigured wins.
	h := NewCallbackHandler("/api/data", nil)
	req := newFakeRequest("POST", "/api/data")
	h.HandleBody(req, make([]byte, 100), 0, 100000)
	h.HandleRequest(req)
	if req.sentStatus != 500 {
		t.Errorf("Expected unconfigured (500) before too-large, got %d", req.sentStatus)
	}
}

func TestCallbackHandlerBufferReleasedAfterSuccess(t *testing.T) {
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {})

	req := newFakeRequest("POST", "/api/data")
	deliver(h, req, []byte(`{"a":1}`), 3)
	h.HandleRequest(req)
	if req.sends != 0 {
		t.Fatalf("unexpected failure response %d", req.sentStatus)
	}

	// Next cycle with no body must report 400, not replay the old buffer.
	req2 := newFakeRequest("POST", "/api/data")
	h.HandleRequest(req2)
	if req2.sentStatus != 400 {
		t.Errorf("Expected status 400 after release, got %d", req2.sentStatus)
	}
}

func TestCallbackHandlerOutOfBoundsChunkSurfacesLater(t *testing.T) {
	called := false
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {
		called = true
	})

	req := newFakeRequest("POST", "/api/data")
	// Valid first chunk, then one that would overflow the 10-byte buffer.
	h.HandleBody(req, []byte(`{"a":`), 0, 10)
	h.HandleBody(req, []byte(`123456`), 5, 10)
	h.HandleRequest(req)

	if called {
		t.Error("Consumer must not see a partially filled buffer as valid JSON")
	}
	if req.sentStatus != 400 {
		t.Errorf("Expected status 400, got %d", req.sentStatus)
	}
}

func TestCallbackHandlerAbortReleasesBuffer(t *testing.T) {
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {})

	req := newFakeRequest("POST", "/api/data")
	h.HandleBody(req, []byte(`{"a":1}`), 0, 7)
	h.HandleAbort(req)

	req2 := newFakeRequest("POST", "/api/data")
	h.HandleRequest(req2)
	if req2.sentStatus != 400 {
		t.Errorf("Expected status 400 after abort, got %d", req2.sentStatus)
	}
}

func TestCallbackHandlerRejectsInterleavedRequests(t *testing.T) {
	var gotBodies []string
	h := NewCallbackHandler("/api/data", func(_ Request, root jsoniter.Any) {
		gotBodies = append(gotBodies, root.ToString())
	})

	reqA := newFakeRequest("POST", "/api/data")
	reqB := newFakeRequest("POST", "/api/data")
	bodyA := []byte(`{"k":"aaaaaaaaaaaa"}`)
	bodyB := []byte(`{"b":true}`)

	// A second request's chunks arrive between the first request's chunks.
	// They must be dropped, not written into A's buffer.
	h.HandleBody(reqA, bodyA[:10], 0, len(bodyA))
	h.HandleBody(reqB, bodyB, 0, len(bodyB))
	h.HandleBody(reqA, bodyA[10:], 10, len(bodyA))
	h.HandleRequest(reqA)

	if len(gotBodies) != 1 {
		t.Fatalf("Expected one consumer invocation, got %d", len(gotBodies))
	}
	if gotBodies[0] != `{"k":"aaaaaaaaaaaa"}` {
		t.Errorf("Consumer received foreign payload %q", gotBodies[0])
	}
	if reqA.sends != 0 {
		t.Errorf("Unexpected failure response %d for owning request", reqA.sentStatus)
	}
}

func TestCallbackHandlerIntruderNeverSeesActiveBuffer(t *testing.T) {
	called := 0
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {
		called++
	})

	reqA := newFakeRequest("POST", "/api/data")
	reqB := newFakeRequest("POST", "/api/data")
	h.HandleBody(reqA, []byte(`{"a":1`), 0, 7)

	// B completes while A's cycle is still open: B must not consume, release
	// or abort A's buffer.
	h.HandleRequest(reqB)
	if reqB.sentStatus != 400 {
		t.Errorf("Expected status 400 for non-owning request, got %d", reqB.sentStatus)
	}
	h.HandleAbort(reqB)

	h.HandleBody(reqA, []byte(`}`), 6, 7)
	h.HandleRequest(reqA)
	if called != 1 {
		t.Fatalf("Expected consumer invoked once for the owner, got %d", called)
	}
	if reqA.sends != 0 {
		t.Errorf("Owner's cycle was disturbed, sent status %d", reqA.sentStatus)
	}
}

func TestCanHandleMatching(t *testing.T) {
	h := NewCallbackHandler("/api/data", func(_ Request, _ jsoniter.Any) {})

	cases := []struct {
		method, path, contentType string
		want                      bool
	}{
		{"POST", "/api/data", MimeType, true},
		{"PUT", "/api/data", MimeType, true},
		{"patch", "/api/data", MimeType, true},
		{"POST", "/api/data/items", MimeType, true},
		{"POST", "/api/database", MimeType, false},
		{"GET", "/api/data", MimeType, false},
		{"POST", "/other", MimeType, false},
		{"POST", "/api/data", "Application/JSON; charset=utf-8", true},
		{"POST", "/api/data", "text/plain", false},
	}
	for _, c := range cases {
		req := newFakeRequest(c.method, c.path)
		req.contentType = c.contentType
		if got := h.CanHandle(req); got != c.want {
			t.Errorf("CanHandle(%s %s %s) = %v, want %v", c.method, c.path, c.contentType, got, c.want)
		}
	}
}
