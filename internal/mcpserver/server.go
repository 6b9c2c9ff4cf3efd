// Package mcpserver exposes the document chat as MCP tools over streamable
// HTTP, so agents can ask the backend questions without the TUI.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/mark3labs/mcp-go/server"
)

// ModelLister lists the models the backend can answer with.
type ModelLister interface {
	ListModels(ctx context.Context) ([]chat.Model, error)
}

// Options configures a Server.
type Options struct {
	Transport chat.Transport
	Models    ModelLister
	// Request is the template of every ask-documents prompt.
	Request chat.PromptRequest
	// Publisher receives the lifecycle notifications of every prompt. Optional.
	Publisher chat.Publisher
	// Addr is the listen address. Empty picks a random localhost port.
	Addr string
}

// Server manages an embedded MCP HTTP server that exposes the chat tools.
type Server struct {
	opts       Options
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	stdServer  *http.Server // Standard HTTP server that uses the listener
	port       int
	log        *logger.Logger
	mu         sync.Mutex
}

// New creates a new MCP server instance.
// The server is not started until Start() is called.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		log:  logger.Named("mcp"),
	}
	s.mcpServer = server.NewMCPServer(
		"docchat",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Start starts the MCP HTTP server.
// Returns the port number or an error if startup fails.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, errors.New("server already started")
	}

	addr := s.opts.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	// Listen first so the port is known before serving.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mcpHandler := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	)
	mux.Handle("/mcp", mcpHandler)

	s.stdServer = &http.Server{
		Handler: mux,
	}
	s.httpServer = mcpHandler

	// Capture stdServer reference for goroutine to avoid race with Stop()
	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("MCP server error: %v", err)
		}
	}()

	s.log.Debug("MCP server ready on port %d", s.port)
	return s.port, nil
}

// Stop stops the MCP HTTP server. Calls in flight are cancelled.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil // Already stopped
	}

	s.log.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("stop mcp server: %w", err)
	}

	s.httpServer = nil
	s.stdServer = nil
	return nil
}

// URL returns the HTTP URL for the MCP server endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
