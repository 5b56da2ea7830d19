package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/orchestrator"
)

const instrumentationName = "github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/mcp"

var (
	ErrNilRegistry = errors.New("eye registry is required")
	ErrNilFlows    = errors.New("flows are required")
)

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to clients.
	Name string

	// Version is the implementation version reported to clients.
	Version string

	Logger *zap.Logger

	// Meter records tool metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// DefaultConfig returns the default implementation info.
func DefaultConfig() *Config {
	return &Config{
		Name:    "third-eye",
		Version: "0.1.0",
		Logger:  zap.NewNop(),
	}
}

// Server is the MCP transport over the eye registry.
type Server struct {
	mcp      *mcp.Server
	registry *eyes.Registry
	flows    *orchestrator.Flows
	metrics  *Metrics
	logger   *zap.Logger
}

// NewServer registers one tool per eye in registry plus the flow and status
// tools. Eyes registered later are not picked up.
func NewServer(cfg *Config, registry *eyes.Registry, flows *orchestrator.Flows) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if flows == nil {
		return nil, ErrNilFlows
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		registry: registry,
		flows:    flows,
		metrics:  NewMetrics(meter, logger),
		logger:   logger,
	}
	s.registerEyeTools()
	s.registerPipelineTools()
	return s, nil
}

// Run serves on stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session on transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
