package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"snippets/internal/api"
	"snippets/internal/config"
	"snippets/internal/discovery"
)

// Serve runs the HTTP API until ctx is done, then shuts down gracefully:
// the listener stops, open sessions are saved and closed, and the
// maintenance scheduler and event hub are stopped.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	hub := api.NewHub(logger)
	defer hub.Close()

	a, err := New(ctx, cfg, Options{Logger: logger, Emitter: hub})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Maintenance.Start(ctx); err != nil {
		return err
	}

	srv := api.New(api.Deps{
		Snippets:    a.Snippets,
		Workspaces:  a.Workspaces,
		Editor:      a.Editor,
		Maintenance: a.Maintenance,
		Hub:         hub,
		Logger:      logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Listen)
	if err != nil {
		a.Shutdown(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Listen, err)
	}

	if cfg.MDNS.Enabled {
		adv, err := advertise(cfg, ln.Addr())
		if err != nil {
			logger.Warn("mdns: advertise failed", "error", err)
		} else {
			defer adv.Shutdown()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", ln.Addr().String())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return serveErr
}

func advertise(cfg *config.Config, addr net.Addr) (*discovery.Advertiser, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected listener address %s", addr)
	}
	return discovery.Advertise(discovery.AdvertiseOptions{
		Instance: cfg.MDNS.Instance,
		Port:     tcp.Port,
		Info: map[string]string{
			"version": "1",
			"backend": cfg.SnippetBackend,
			"port":    strconv.Itoa(tcp.Port),
		},
	})
}
