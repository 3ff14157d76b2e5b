package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/studyaids"
	"github.com/fyrsmithlabs/mindmapd/internal/topics"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server is an MCP server backed by the generator and the topic catalog.
type Server struct {
	mcp       *mcp.Server
	generator *workflow.Generator
	catalog   *topics.Catalog
	aids      *studyaids.Service
	metrics   *Metrics
	logger    *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "mindmapd")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *logging.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mindmapd",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates a Server. aids is optional; without it the tips and
// MCQ tools are not registered.
func NewServer(cfg *Config, generator *workflow.Generator, catalog *topics.Catalog, aids *studyaids.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if catalog == nil {
		return nil, errors.New("topic catalog is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		generator: generator,
		catalog:   catalog,
		aids:      aids,
		metrics:   NewMetrics(cfg.Logger),
		logger:    cfg.Logger.Named("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session on transport. Used for in-process
// clients.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
