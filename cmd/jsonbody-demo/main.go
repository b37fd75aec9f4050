// Package main demonstrates the jsonbody handlers on the gnet transport:
// a one-shot parsed-JSON endpoint and a sliced streaming endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	jsoniter "github.com/json-iterator/go"

	"github.com/albertbausili/jsonbody/internal/transport"
	"github.com/albertbausili/jsonbody/pkg/jsonbody"
)

func main() {
	logger := log.New(os.Stdout, "[jsonbody] ", log.LstdFlags)

	config := jsonbody.DefaultConfig()
	config.Logger = logger

	// One-shot: parse the body, echo a summary of the root back.
	echo := jsonbody.NewCallbackHandlerWithConfig("/api/echo", func(req jsonbody.Request, root jsoniter.Any) {
		resp := jsonbody.NewResponse()
		if err := resp.SetRoot(map[string]interface{}{
			"path": req.Path(),
			"kind": int(root.ValueType()),
			"size": root.Size(),
		}); err != nil {
			_ = req.Send(500, "text/plain", []byte("Internal Server Error"))
			return
		}
		_ = resp.Send(req)
	}, config)

	// Streaming: count raw bytes as slices arrive; respond once the full
	// declared length has been delivered.
	var received int
	ingest := jsonbody.NewStreamHandlerWithConfig("/api/ingest", func(req jsonbody.Request, chunk []byte) {
		received += len(chunk)
		total, _ := strconv.Atoi(req.Header("Content-Length"))
		if received >= total {
			n := received
			received = 0
			_ = req.Send(200, jsonbody.MimeType, []byte(`{"received":`+strconv.Itoa(n)+`}`))
		}
	}, config)

	addr := os.Getenv("JSONBODY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx := context.Background()
	// Handler instances own a single body cycle and are not safe to share
	// across event loops, so the server runs one loop.
	server := transport.NewServer(ctx, transport.Config{
		Addr:         addr,
		Multicore:    false,
		NumEventLoop: 1,
		ReusePort:    true,
		Logger:       logger,
	}, echo, ingest)

	if err := server.Start(); err != nil {
		logger.Fatalf("server start: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := server.Stop(ctx); err != nil {
		logger.Printf("server stop: %v", err)
	}
}
