package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── snippets://sessions ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"snippets://sessions",
		"Open Sessions",
		mcp.WithMIMEType("application/json"),
	), s.handleSessionsResource)

	// ── snippets://session/{sessionId}/document ────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"snippets://session/{sessionId}/document",
			"Document of a Session",
		),
		s.handleSessionDocumentResource,
	)
}

func (s *Server) handleSessionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.editor.List(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "snippets://sessions",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSessionDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	sessionID := sessionIDFromURI(uri)
	if sessionID == "" {
		return nil, fmt.Errorf("could not extract sessionId from URI: %s", uri)
	}
	sess, err := s.editor.Get(sessionID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(sess.Store.Snapshot(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// sessionIDFromURI extracts the id from "snippets://session/{id}/document".
func sessionIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, "snippets://session/")
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, "/document")
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
