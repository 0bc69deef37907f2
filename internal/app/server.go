package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	intrnl "roomcast/internal"
	"roomcast/internal/storage"
	"roomcast/pkg/logger"
)

// ServerHandle represents a running service instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	core   *intrnl.Server
	store  *storage.Store
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	h.core.Shutdown()
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer wires the core, optionally opens the SQLite store and runs its
// migrations, then starts serving in the background. Call Stop/Wait to manage
// the lifecycle.
func RunServer(ctx context.Context, cfg Config) (*ServerHandle, error) {
	cfg.Path = NormalizeJoinPath(cfg.Path)

	var store *storage.Store
	var history intrnl.History
	var directory intrnl.Directory
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		var err error
		store, err = storage.NewStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := store.Migrate(context.Background()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		history = store
		directory = store
	}

	metrics := intrnl.NewMetrics()
	presence := intrnl.NewPresenceTracker()
	conns := intrnl.NewConnManager(presence, metrics)
	hub := intrnl.NewHub(conns, history, metrics, cfg.TypingTTL, cfg.RoomGrace, cfg.Backlog)
	limiter := intrnl.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	router := intrnl.NewRouter(hub, conns, limiter)
	core := intrnl.NewServer(hub, conns, router, presence, intrnl.QueryIdentity{Directory: directory}, metrics)

	mux := http.NewServeMux()
	core.Routes(mux, cfg.Path)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		core:   core,
		store:  store,
		done:   make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		core.Shutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server shutdown error: %v", err)
		}
	}()

	go handle.serve(listener)

	logger.Info("roomcast listening on %s%s", handle.addr, cfg.Path)
	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if closeErr := h.store.Close(); closeErr != nil {
		logger.Error("store close error: %v", closeErr)
	}
	h.err = err
}
