package cmd

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/observability"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// serveSignals owns process signal handling for serve. A gofulmen manager
// returns from Listen after dispatching one signal, so listen arms a fresh
// manager after every reload until a shutdown signal arrives.
type serveSignals struct {
	server          shutdowner
	shutdownTimeout time.Duration
	// cancel ends the serve context once in-flight requests have drained.
	cancel    context.CancelFunc
	reload    signals.ReloadFunc
	logger    *logging.Logger
	doubleTap bool

	newManager func() *signals.Manager

	mu          sync.Mutex
	active      *signals.Manager
	shutdownErr error
}

func (s *serveSignals) log() *logging.Logger {
	if s.logger != nil {
		return s.logger
	}
	return observability.ServerLogger
}

// install registers the shutdown chain and reload hooks on m. Cleanup runs
// LIFO: the HTTP server drains first, then metrics stop and the logger flushes.
func (s *serveSignals) install(m *signals.Manager) error {
	m.OnShutdown(func(ctx context.Context) error {
		if err := observability.StopMetrics(); err != nil {
			s.log().Warn("Metrics exporter stop failed", zap.Error(err))
		}
		if err := s.log().Sync(); err != nil {
			s.log().Debug("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	m.OnShutdown(s.stopServer)
	if s.reload != nil {
		m.OnReload(s.reload)
	}
	if s.doubleTap {
		return m.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		})
	}
	return nil
}

// stopServer drains the server on a context that outlives the signal
// context, then cancels serve. Failures are kept for listen so the rest of
// the chain still runs.
func (s *serveSignals) stopServer(ctx context.Context) error {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer stop()

	err := s.server.Shutdown(shutdownCtx)
	if s.cancel != nil {
		s.cancel()
	}
	if err != nil {
		s.log().Error("HTTP server shutdown incomplete", zap.Error(err))
		s.mu.Lock()
		s.shutdownErr = err
		s.mu.Unlock()
		return nil
	}
	s.log().Info("HTTP server stopped gracefully")
	return nil
}

// installRemote wires the manager behind the /admin/signal endpoint. That
// handler dispatches inside an HTTP request, which the server would wait
// on while draining, so shutdown requests are handed to the OS listener.
func (s *serveSignals) installRemote(m *signals.Manager) {
	m.OnShutdown(func(context.Context) error {
		s.mu.Lock()
		active := s.active
		s.mu.Unlock()
		if active == nil {
			return nil
		}
		signals.NewInjector(active).InjectAsync(syscall.SIGTERM)
		return nil
	})
	if s.reload != nil {
		m.OnReload(s.reload)
	}
}

// listen handles signals until a shutdown signal has run the cleanup chain
// or ctx ends. A failed reload keeps the current configuration.
func (s *serveSignals) listen(ctx context.Context) error {
	newManager := s.newManager
	if newManager == nil {
		newManager = signals.NewManager
	}

	for {
		m := newManager()
		if err := s.install(m); err != nil {
			return err
		}
		var stopping atomic.Bool
		m.OnShutdown(func(context.Context) error {
			stopping.Store(true)
			return nil
		})

		s.mu.Lock()
		s.active = m
		s.mu.Unlock()

		err := m.Listen(ctx)
		m.Stop()

		if stopping.Load() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.active = nil
			if err != nil {
				return err
			}
			return s.shutdownErr
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log().Warn("Signal handling failed; keeping current configuration", zap.Error(err))
		}
	}
}
