package mcpserver

import (
	"context"
	"fmt"

	"snippets/internal/domain"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCanvasTools() {
	// ── set_canvas ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_canvas",
		mcp.WithDescription(`Change the canvas size, padding or background. For a gradient pass background as JSON, e.g. {"fill":{"type":"linear-gradient","angle":135,"stops":[{"color":"#4f46e5","offset":0},{"color":"#db2777","offset":1}]}}.`),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithNumber("width", mcp.Description("Canvas width")),
		mcp.WithNumber("height", mcp.Description("Canvas height")),
		mcp.WithBoolean("linked", mcp.Description("Link width and height")),
		mcp.WithNumber("padding", mcp.Description("Inner padding")),
		mcp.WithString("color", mcp.Description("Solid background color (hex); shorthand for a solid fill")),
		mcp.WithString("background", mcp.Description("Background as JSON; replaces the whole background")),
	), s.handleSetCanvas)
}

func (s *Server) handleSetCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()
	p := domain.CanvasPatch{
		Width:             optFloat(args, "width"),
		Height:            optFloat(args, "height"),
		WidthHeightLinked: optBool(args, "linked"),
		Padding:           optFloat(args, "padding"),
	}

	color, raw := optString(args, "color"), optString(args, "background")
	switch {
	case color != nil && raw != nil:
		return nil, fmt.Errorf("pass either color or background, not both")
	case raw != nil:
		var bg domain.Background
		if err := parseJSON(*raw, &bg); err != nil {
			return nil, fmt.Errorf("invalid background: %w", err)
		}
		p.Background = &bg
	case color != nil:
		bg := sess.Store.Snapshot().Canvas.Background
		bg.Fill = &domain.Fill{Type: domain.FillSolid, Color: *color}
		p.Background = &bg
	}

	if err := sess.Store.SetCanvas(p); err != nil {
		return nil, err
	}
	s.emitDocumentChanged(ctx, sess)
	return jsonResult(sess.Store.Snapshot().Canvas)
}
