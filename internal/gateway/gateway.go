// ABOUTME: Wires the registry, session handler, and discovery surface together.
// ABOUTME: Owns both listeners and drives startup and graceful shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/toolgate/internal/builtins"
	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/discovery"
	"github.com/2389/toolgate/internal/rpc"
	"github.com/2389/toolgate/internal/tools"
)

const shutdownTimeout = 5 * time.Second

// Gateway is the assembled server: one WebSocket listener for RPC sessions
// and one HTTP listener for discovery, both backed by the same registry.
type Gateway struct {
	config   *config.Config
	logger   *slog.Logger
	registry *tools.Registry
	sessions *rpc.Handler

	wsServer   *http.Server
	httpServer *http.Server
}

// New builds a gateway from configuration. All tool registration happens
// here, before Run starts serving, so the registry is never mutated while
// sessions are live.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := tools.NewRegistry(logger)

	fsTool, err := builtins.NewFilesystemTool(cfg.Tools.BasePath)
	if err != nil {
		return nil, fmt.Errorf("creating filesystem tool: %w", err)
	}
	for _, t := range []tools.Tool{fsTool, builtins.NewCalcTool(), builtins.NewDataprocTool()} {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("registering tool: %w", err)
		}
	}

	sessions, err := rpc.NewHandler(rpc.Config{
		Registry:     registry,
		Logger:       logger,
		MaxFrameSize: cfg.Limits.MaxFrameSize,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session handler: %w", err)
	}

	disc, err := discovery.New(discovery.Config{
		Registry: registry,
		Logger:   logger,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating discovery server: %w", err)
	}

	// The RPC listener upgrades every request path; clients connect to the
	// address, not a route.
	wsMux := http.NewServeMux()
	wsMux.Handle("/", sessions)

	return &Gateway{
		config:   cfg,
		logger:   logger,
		registry: registry,
		sessions: sessions,
		wsServer: &http.Server{
			Handler:           wsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		httpServer: &http.Server{
			Handler:           disc.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Registry returns the registry shared by both transports.
func (g *Gateway) Registry() *tools.Registry { return g.registry }

// SessionCount returns the number of active RPC sessions.
func (g *Gateway) SessionCount() int { return g.sessions.SessionCount() }

// Broadcast sends one message to every active session, best effort.
func (g *Gateway) Broadcast(ctx context.Context, payload any) {
	g.sessions.Broadcast(ctx, payload)
}

// Run binds both listeners and serves until ctx is cancelled or a server
// fails. A bind failure (port already in use) is returned immediately and is
// process-fatal.
func (g *Gateway) Run(ctx context.Context) error {
	wsLn, err := net.Listen("tcp", g.config.Server.WSAddr)
	if err != nil {
		return fmt.Errorf("binding rpc listener: %w", err)
	}
	httpLn, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		wsLn.Close()
		return fmt.Errorf("binding discovery listener: %w", err)
	}

	g.logger.Info("rpc server listening", "addr", wsLn.Addr().String())
	g.logger.Info("discovery server listening", "addr", httpLn.Addr().String())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := g.wsServer.Serve(wsLn); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := g.httpServer.Serve(httpLn); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("discovery server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		g.shutdown()
		return nil
	})

	return eg.Wait()
}

func (g *Gateway) shutdown() {
	g.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Warn("discovery server shutdown", "error", err)
	}
	// Sessions hold their connections open, so a graceful drain would wait
	// forever; close the RPC server outright.
	if err := g.wsServer.Close(); err != nil {
		g.logger.Warn("rpc server close", "error", err)
	}
}
