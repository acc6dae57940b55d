package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"snippets/internal/domain"
	"snippets/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for snippets.
// It exposes tools, resources, and prompts so AI agents can edit snippet
// documents through editor sessions.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter
	layout  *LayoutEngine
	log     *slog.Logger

	editor   *service.EditorService
	snippets *service.SnippetService

	// Session used when a tool call omits sessionId.
	mu            sync.Mutex
	activeSession string
}

// Deps holds the services the MCP server drives.
type Deps struct {
	Emitter  service.EventEmitter
	Editor   *service.EditorService
	Snippets *service.SnippetService
	Logger   *slog.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NoopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		emitter:  deps.Emitter,
		layout:   NewLayoutEngine(),
		log:      deps.Logger,
		editor:   deps.Editor,
		snippets: deps.Snippets,
	}

	s.mcp = server.NewMCPServer(
		"snippets-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerSessionTools()
	s.registerElementTools()
	s.registerCanvasTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// emitDocumentChanged notifies listeners that an agent edited a session.
func (s *Server) emitDocumentChanged(ctx context.Context, sess *service.Session) {
	s.emitter.Emit(ctx, "mcp:document-changed", map[string]string{
		"sessionId": sess.ID,
		"snippetId": sess.SnippetID,
	})
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActive(id string) {
	s.mu.Lock()
	s.activeSession = id
	s.mu.Unlock()
}

// resolveSession returns the session named by sessionId, or the active one.
func (s *Server) resolveSession(req mcp.CallToolRequest) (*service.Session, error) {
	id := req.GetString("sessionId", "")
	if id == "" {
		s.mu.Lock()
		id = s.activeSession
		s.mu.Unlock()
	}
	if id == "" {
		return nil, fmt.Errorf("no sessionId provided and no active session (use open_snippet first)")
	}
	return s.editor.Get(id)
}

// elementFor resolves the session and checks that elementId exists in it.
func (s *Server) elementFor(req mcp.CallToolRequest) (*service.Session, domain.Element, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, domain.Element{}, err
	}
	id := req.GetString("elementId", "")
	if id == "" {
		return nil, domain.Element{}, fmt.Errorf("elementId is required")
	}
	el, ok := sess.Store.Element(id)
	if !ok {
		return nil, domain.Element{}, fmt.Errorf("element %q: %w", id, domain.ErrNotFound)
	}
	return sess, el, nil
}
