// Package jsonbody buffers chunked JSON request bodies for event-loop HTTP
// servers and delivers them to consumer callbacks, either parsed in one shot
// or re-emitted as fixed-size slices across scheduler ticks.
package jsonbody

import (
	"io"
	"log"
	"time"
)

// MimeType is the JSON media type matched by the handlers.
const MimeType = "application/json"

// Config holds per-handler configuration for body buffering and delivery.
type Config struct {
	MaxContentLength int           // Maximum accepted body size in bytes
	ChunkSize        int           // Slice size for streaming delivery
	TickDelay        time.Duration // Delay between streaming ticks
	Methods          []string      // HTTP methods the handler accepts
	Scheduler        Scheduler     // Tick scheduler for streaming delivery
	Logger           *log.Logger   // Logger for handler events
}

// newSilentLogger creates a silent logger that discards all output
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxContentLength: 16384,
		ChunkSize:        1024,
		TickDelay:        3 * time.Millisecond,
		Methods:          []string{"POST", "PUT", "PATCH"},
		Scheduler:        TimerScheduler{},
		Logger:           newSilentLogger(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 16384
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1024
	}
	if c.TickDelay <= 0 {
		c.TickDelay = 3 * time.Millisecond
	}
	if len(c.Methods) == 0 {
		c.Methods = []string{"POST", "PUT", "PATCH"}
	}
	if c.Scheduler == nil {
		c.Scheduler = TimerScheduler{}
	}
	if c.Logger == nil {
		c.Logger = newSilentLogger()
	}
	return nil
}
