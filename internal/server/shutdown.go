package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
)

const shutdownTimeout = 30 * time.Second

// httpServer holds the HTTP server instance and its listener.
type httpServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.RWMutex
}

// Shutdown gracefully shuts down the server.
// If the server hasn't been started, this is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServerMu.RLock()
	hs := s.httpServer
	s.httpServerMu.RUnlock()

	if hs == nil {
		return nil
	}

	hs.mu.RLock()
	server := hs.server
	hs.mu.RUnlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if the server hasn't been started.
func (s *Server) Addr() string {
	s.httpServerMu.RLock()
	hs := s.httpServer
	s.httpServerMu.RUnlock()

	if hs == nil {
		return ""
	}

	hs.mu.RLock()
	defer hs.mu.RUnlock()

	if hs.listener == nil {
		return ""
	}

	return hs.listener.Addr().String()
}

// ListenAndServeWithShutdown serves until SIGINT, SIGTERM or Shutdown, then
// drains requests and stops the sync engine and cleanup scheduler.
// Returns nil on successful shutdown, or an error if the server fails to start.
func (s *Server) ListenAndServeWithShutdown(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	log := clog.FromContext(ctx)

	// Create listener first so we know the actual address (important for port 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	hs := &httpServer{
		server: &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		},
		listener: listener,
	}

	s.httpServerMu.Lock()
	s.httpServer = hs
	s.httpServerMu.Unlock()

	defer s.stopBackground()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverDone := make(chan error, 1)

	go func() {
		if err := hs.server.Serve(listener); err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	log.With("addr", listener.Addr().String()).Info("Server started")
	close(s.ready)

	select {
	case sig := <-shutdown:
		log.With("signal", sig.String()).Info("Initiating shutdown")
	case err := <-serverDone:
		// Server stopped on its own (error or shutdown called)
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := hs.server.Shutdown(shutdownCtx); err != nil {
		log.With("error", err).Error("Shutdown failed")
		return err
	}

	<-serverDone
	log.Info("Server shutdown complete")
	return nil
}

func (s *Server) stopBackground() {
	if s.deps.Engine != nil {
		s.deps.Engine.Stop()
	}
	if s.deps.Cleanup != nil {
		s.deps.Cleanup.Stop()
	}
	s.background.Wait()
}
