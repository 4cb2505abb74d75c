package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"kbmcp/internal/config"
	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/cors"
)

const (
	SSEPath        = "/sse"
	MessagePath    = "/message"
	StreamablePath = "/mcp"
	// HealthPath reports liveness and the knowledge base size on HTTP transports.
	HealthPath = "/healthz"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var ErrUnknownTransport = errors.New("unknown transport")

// Options configures a Server. Zero values fall back to config defaults.
type Options struct {
	Name      string
	Version   string
	Transport string
	Addr      string
}

func (o Options) withDefaults() Options {
	def := config.DefaultConfig().Server
	if o.Name == "" {
		o.Name = def.Name
	}
	if o.Version == "" {
		o.Version = def.Version
	}
	if o.Transport == "" {
		o.Transport = def.Transport
	}
	if o.Addr == "" {
		o.Addr = def.Addr
	}
	return o
}

// Server exposes a knowledge base snapshot over MCP.
type Server struct {
	opts      Options
	logger    *logging.AppLogger
	tool      *KnowledgeTool
	mcpServer *server.MCPServer

	// stdin and stdout are swapped in tests.
	stdin  io.Reader
	stdout io.Writer
}

// NewServer registers the knowledge tool on a new mcp-go server.
func NewServer(kb matcher.KnowledgeBase, opts Options, logger *logging.AppLogger) *Server {
	if logger == nil {
		logger = logging.GetDefault()
	}
	opts = opts.withDefaults()

	s := &Server{
		opts:   opts,
		logger: logger,
		tool:   NewKnowledgeTool(kb, logger),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}

	s.mcpServer = server.NewMCPServer(opts.Name, opts.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcpServer.AddTool(s.tool.Definition(), s.tool.Handle)

	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// transportHandler returns the mcp-go HTTP transport to mount on the router.
func (s *Server) transportHandler(transport string) (http.Handler, error) {
	switch transport {
	case config.TransportSSE:
		return server.NewSSEServer(s.mcpServer,
			server.WithSSEEndpoint(SSEPath),
			server.WithMessageEndpoint(MessagePath),
		), nil
	case config.TransportHTTP:
		return server.NewStreamableHTTPServer(s.mcpServer,
			server.WithEndpointPath(StreamablePath),
		), nil
	}
	return nil, fmt.Errorf("%w: %q has no HTTP handler", ErrUnknownTransport, transport)
}

// Handler returns the HTTP handler for the sse or http transport: the MCP
// endpoints and HealthPath, behind a CORS policy that admits browser clients.
func (s *Server) Handler(transport string) (http.Handler, error) {
	th, err := s.transportHandler(transport)
	if err != nil {
		return nil, err
	}
	return s.router(transport, th), nil
}

func (s *Server) router(transport string, th http.Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	if transport == config.TransportSSE {
		r.Handle(SSEPath, th)
		r.Handle(MessagePath, th)
	} else {
		r.Handle(StreamablePath, th)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	})
	return c.Handler(r)
}

type health struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Records int    `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Name:    s.opts.Name,
		Version: s.opts.Version,
		Records: len(s.tool.kb),
	})
	if err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// Serve runs the configured transport until it ends or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server",
		"name", s.opts.Name,
		"version", s.opts.Version,
		"transport", s.opts.Transport,
		"addr", s.opts.Addr,
	)

	switch s.opts.Transport {
	case config.TransportStdio:
		return s.serveStdio(ctx)
	case config.TransportSSE, config.TransportHTTP:
		return s.serveHTTP(ctx)
	}
	return fmt.Errorf("%w: %q", ErrUnknownTransport, s.opts.Transport)
}

func (s *Server) serveStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger.StandardLog())

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		s.logger.Info("MCP stdio session ended")
		return nil
	}
	return fmt.Errorf("mcp stdio server: %w", err)
}

func (s *Server) serveHTTP(ctx context.Context) error {
	th, err := s.transportHandler(s.opts.Transport)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("mcp %s server: %w", s.opts.Transport, err)
	}
	// Cancelling baseCtx ends long-lived SSE streams so Shutdown can finish.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Handler:           s.router(s.opts.Transport, th),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("MCP server listening", "transport", s.opts.Transport, "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("mcp %s server: %w", s.opts.Transport, err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down MCP server", "transport", s.opts.Transport)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	cancelBase()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mcp %s shutdown: %w", s.opts.Transport, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp %s server: %w", s.opts.Transport, err)
	}
	return nil
}
