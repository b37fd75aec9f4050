package transport

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/albertbausili/jsonbody/pkg/jsonbody"
)

// verboseLogging controls per-connection log verbosity.
const verboseLogging = false

// Config defines the configuration options for the transport server.
type Config struct {
	Addr           string
	Multicore      bool
	NumEventLoop   int
	ReusePort      bool
	Logger         *log.Logger
	MaxConnections uint32
}

// Server implements gnet.EventHandler and dispatches requests to the
// registered jsonbody handlers.
type Server struct {
	gnet.BuiltinEventEngine
	handlers       []jsonbody.Handler
	ctx            context.Context
	cancel         context.CancelFunc
	logger         *log.Logger
	addr           string
	multicore      bool
	numEventLoop   int
	reusePort      bool
	maxConnections uint32
	activeConns    uint32
	engine         gnet.Engine
	engineStarted  bool
}

// NewServer creates a transport server with the given configuration and
// handler chain. Handlers are asked in order; the first CanHandle claims
// the request.
func NewServer(ctx context.Context, config Config, handlers ...jsonbody.Handler) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		handlers:       handlers,
		ctx:            serverCtx,
		cancel:         cancel,
		logger:         config.Logger,
		addr:           config.Addr,
		multicore:      config.Multicore,
		numEventLoop:   config.NumEventLoop,
		reusePort:      config.ReusePort,
		maxConnections: config.MaxConnections,
	}
}

// Start starts the transport server.
func (s *Server) Start() error {
	options := []gnet.Option{
		gnet.WithMulticore(s.multicore),
		gnet.WithReusePort(s.reusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithTCPKeepAlive(time.Minute * 5),
		gnet.WithLogger(silentGnetLogger{}),
	}
	if s.numEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.numEventLoop))
	}

	s.logger.Printf("Starting JSON body server on %s", s.addr)
	go func() {
		_ = gnet.Run(s, "tcp://"+s.addr, options...)
	}()
	s.engineStarted = true
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.engineStarted {
		stopCtx, stopCancel := context.WithTimeout(ctx, 2*time.Second)
		defer stopCancel()
		if err := s.engine.Stop(stopCtx); err != nil {
			s.logger.Printf("Error stopping gnet engine: %v", err)
			return err
		}
	}
	s.logger.Println("JSON body server shutdown complete")
	return nil
}

// OnBoot is called when the server is ready to accept connections.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.engineStarted = true
	s.logger.Printf("JSON body server is listening on %s (multicore: %v)", s.addr, s.multicore)
	return gnet.None
}

// OnShutdown is called when the server is shutting down.
func (s *Server) OnShutdown(_ gnet.Engine) {
	s.engineStarted = false
}

// OnOpen is called when a new connection is opened.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if s.maxConnections > 0 && atomic.LoadUint32(&s.activeConns) >= s.maxConnections {
		s.logger.Printf("Connection rejected from %s: too many connections", c.RemoteAddr().String())
		return rawResponse(503, "Service Unavailable"), gnet.Close
	}
	atomic.AddUint32(&s.activeConns, 1)

	conn := NewConnection(c, s.handlers, s.logger)
	c.SetContext(conn)
	if verboseLogging {
		s.logger.Printf("Connection from %s", c.RemoteAddr().String())
	}
	return nil, gnet.None
}

// OnClose is called when a connection is closed. The active exchange, if
// any, is aborted so pending streaming ticks are canceled.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	atomic.AddUint32(&s.activeConns, ^uint32(0))

	if ctx := c.Context(); ctx != nil {
		if conn, ok := ctx.(*Connection); ok {
			conn.Abort()
		}
	}
	if err != nil && verboseLogging {
		s.logger.Printf("Connection closed with error from %s: %v", c.RemoteAddr().String(), err)
	}
	return gnet.None
}

// OnTraffic is called when data is received on a connection.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*Connection)
	if !ok {
		s.logger.Printf("connection context missing")
		return gnet.Close
	}

	buf, err := c.Next(-1)
	if err != nil {
		s.logger.Printf("Error reading data: %v", err)
		return gnet.Close
	}
	if len(buf) == 0 {
		return gnet.None
	}

	if err := conn.HandleData(buf); err != nil {
		if err == errCloseRequested {
			return gnet.Close
		}
		s.logger.Printf("Error handling data: %v", err)
		return gnet.Close
	}
	return gnet.None
}

// rawResponse assembles a minimal close-delimited response for connections
// rejected before a Connection exists.
func rawResponse(status int, message string) []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 %d %s\r\ncontent-type: text/plain\r\ncontent-length: %d\r\nconnection: close\r\n\r\n%s",
		status, statusText(status), len(message), message))
}

// silentGnetLogger discards all gnet output.
type silentGnetLogger struct{}

func (silentGnetLogger) Debugf(_ string, _ ...any) {}
func (silentGnetLogger) Infof(_ string, _ ...any)  {}
func (silentGnetLogger) Warnf(_ string, _ ...any)  {}
func (silentGnetLogger) Errorf(_ string, _ ...any) {}
func (silentGnetLogger) Fatalf(_ string, _ ...any) {}
