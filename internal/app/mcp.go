package app

import (
	"context"
	"fmt"
	"log/slog"

	"snippets/internal/config"
	mcpserver "snippets/internal/mcp"
)

// ServeMCP runs a standalone MCP server on stdin/stdout. There is no
// event stream in this mode, so events are dropped. Open sessions are
// saved when ctx is done or the client disconnects.
func ServeMCP(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := New(ctx, cfg, Options{Logger: logger})
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Shutdown(context.Background())

	srv := mcpserver.New(mcpserver.Deps{
		Editor:   a.Editor,
		Snippets: a.Snippets,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[MCP] Starting standalone stdio server")
		errCh <- srv.ServeStdio()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}
