package mcpserver

import (
	"context"
	"fmt"

	"snippets/internal/domain"
	"snippets/internal/editor"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerElementTools() {
	// ── add_code_element ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_code_element",
		mcp.WithDescription("Add a code editor element on top of the canvas. Without x/y it is placed in the first free spot."),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("code", mcp.Description("Source code"), mcp.Required()),
		mcp.WithString("language", mcp.Description("Language for highlighting (e.g. go, python, typescript)")),
		mcp.WithString("theme", mcp.Description("Editor theme"), mcp.Enum("dark", "light")),
		mcp.WithNumber("fontSize", mcp.Description("Font size in px (default 14)")),
		mcp.WithBoolean("showLineNumbers", mcp.Description("Show the line-number gutter (default true)")),
		mcp.WithNumber("x", mcp.Description("Left position")),
		mcp.WithNumber("y", mcp.Description("Top position")),
		mcp.WithNumber("width", mcp.Description("Width (default 480)")),
		mcp.WithNumber("height", mcp.Description("Height (default 280)")),
	), s.handleAddCodeElement)

	// ── add_text_element ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_text_element",
		mcp.WithDescription("Add a text element on top of the canvas. The value may contain simple HTML formatting."),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("value", mcp.Description("Text or HTML fragment"), mcp.Required()),
		mcp.WithString("align", mcp.Description("Text alignment"), mcp.Enum("left", "center", "right")),
		mcp.WithString("color", mcp.Description("Hex color (default #ffffff)")),
		mcp.WithNumber("fontSize", mcp.Description("Font size in px (default 24)")),
		mcp.WithNumber("fontWeight", mcp.Description("CSS font weight (default 400)")),
		mcp.WithNumber("x", mcp.Description("Left position")),
		mcp.WithNumber("y", mcp.Description("Top position")),
		mcp.WithNumber("width", mcp.Description("Width (default 400)")),
		mcp.WithNumber("height", mcp.Description("Height (default 60)")),
	), s.handleAddTextElement)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription(`Update element fields with a JSON patch object, e.g. {"name":"Title","text":{"value":"Hi","fontSize":40}} or {"code":{"code":"...","theme":"light"}}. Only the fields present change; "code" and "text" must match the element type.`),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
		mcp.WithString("patch", mcp.Description("JSON element patch"), mcp.Required()),
	), s.handleUpdateElement)

	// ── update_transform ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_transform",
		mcp.WithDescription("Move, resize, rotate or scale an element. When width and height are linked, changing one adjusts the other to keep the aspect ratio."),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Left position")),
		mcp.WithNumber("y", mcp.Description("Top position")),
		mcp.WithNumber("width", mcp.Description("Width")),
		mcp.WithNumber("height", mcp.Description("Height")),
		mcp.WithNumber("rotation", mcp.Description("Rotation in degrees")),
		mcp.WithNumber("scale", mcp.Description("Scale factor")),
		mcp.WithBoolean("linked", mcp.Description("Link width and height")),
	), s.handleUpdateTransform)

	// ── remove_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("Remove an element from the canvas"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
	), s.handleRemoveElement)

	// ── duplicate_element ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_element",
		mcp.WithDescription("Duplicate an element; the copy is placed on top, slightly offset"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
	), s.handleDuplicateElement)

	// ── align_element ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("align_element",
		mcp.WithDescription("Align an element against the canvas on one axis"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
		mcp.WithString("alignment",
			mcp.Description("Where to align"),
			mcp.Required(),
			mcp.Enum(
				string(editor.AlignStartHorizontal), string(editor.AlignCenterHorizontal), string(editor.AlignEndHorizontal),
				string(editor.AlignStartVertical), string(editor.AlignCenterVertical), string(editor.AlignEndVertical),
			),
		),
	), s.handleAlignElement)

	// ── move_element ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Change the stacking order of an element. Index 0 is the top."),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithString("elementId", mcp.Description("ID of the element"), mcp.Required()),
		mcp.WithNumber("index", mcp.Description("New stack index"), mcp.Required()),
	), s.handleMoveElement)

	// ── arrange_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_elements",
		mcp.WithDescription("Lay out all visible, unlocked elements in rows inside the canvas padding"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
	), s.handleArrangeElements)
}

// place returns the requested position, or the first free one.
func (s *Server) place(args map[string]any, store *editor.Store, w, h float64) domain.Position {
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if hasX && hasY {
		return domain.Position{X: x, Y: y}
	}
	doc := store.Snapshot()
	p := s.layout.NextPosition(doc.Canvas, doc.Elements, w, h)
	if hasX {
		p.X = x
	}
	if hasY {
		p.Y = y
	}
	return p
}

func (s *Server) addElement(ctx context.Context, req mcp.CallToolRequest, name string, w, h, minW, minH float64, data domain.ElementData) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()
	w = getFloat(args, "width", w)
	h = getFloat(args, "height", h)
	el := domain.Element{
		ID:   uuid.NewString(),
		Name: name,
		Transform: domain.Transform{
			Width:     w,
			Height:    h,
			MinWidth:  min(minW, w),
			MinHeight: min(minH, h),
			Scale:     1,
			Position:  s.place(args, sess.Store, w, h),
		},
		Data: data,
	}
	if err := sess.Store.AddElement(el); err != nil {
		return nil, err
	}
	s.emitDocumentChanged(ctx, sess)
	added, _ := sess.Store.Element(el.ID)
	return jsonResult(summarizeElement(added))
}

func (s *Server) handleAddCodeElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	code := req.GetString("code", "")
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	showLines := true
	if v := optBool(args, "showLineNumbers"); v != nil {
		showLines = *v
	}
	data := &domain.CodeEditorData{
		Code:            code,
		Language:        req.GetString("language", "plaintext"),
		FontSize:        getFloat(args, "fontSize", 14),
		LineHeight:      1.5,
		ShowLineNumbers: showLines,
		Theme:           req.GetString("theme", "dark"),
		Padding:         16,
	}
	return s.addElement(ctx, req, "Code", 480, 280, 160, 80, data)
}

func (s *Server) handleAddTextElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	value := req.GetString("value", "")
	if value == "" {
		return nil, fmt.Errorf("value is required")
	}
	data := &domain.TextData{
		Value:      value,
		Align:      domain.TextAlign(req.GetString("align", string(domain.TextAlignLeft))),
		Color:      req.GetString("color", "#ffffff"),
		FontFamily: "sans-serif",
		FontSize:   getFloat(args, "fontSize", 24),
		FontWeight: int(getFloat(args, "fontWeight", 400)),
	}
	return s.addElement(ctx, req, "Text", 400, 60, 40, 20, data)
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	var p domain.ElementPatch
	if err := parseJSON(req.GetString("patch", ""), &p); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	if err := sess.Store.UpdateElement(el.ID, p); err != nil {
		return nil, err
	}
	s.emitDocumentChanged(ctx, sess)
	updated, _ := sess.Store.Element(el.ID)
	return jsonResult(summarizeElement(updated))
}

func (s *Server) handleUpdateTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()
	p := domain.TransformPatch{
		Width:             optFloat(args, "width"),
		Height:            optFloat(args, "height"),
		Rotation:          optFloat(args, "rotation"),
		Scale:             optFloat(args, "scale"),
		WidthHeightLinked: optBool(args, "linked"),
	}
	x, y := optFloat(args, "x"), optFloat(args, "y")
	if x != nil || y != nil {
		pos := el.Transform.Position
		if x != nil {
			pos.X = *x
		}
		if y != nil {
			pos.Y = *y
		}
		p.Position = &pos
	}
	if err := sess.Store.UpdateElementTransform(el.ID, p); err != nil {
		return nil, err
	}
	s.emitDocumentChanged(ctx, sess)
	updated, _ := sess.Store.Element(el.ID)
	return jsonResult(updated.Transform)
}

func (s *Server) handleRemoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	sess.Store.RemoveElement(el.ID)
	s.emitDocumentChanged(ctx, sess)
	return textResult(fmt.Sprintf("Removed element %s", el.ID)), nil
}

func (s *Server) handleDuplicateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	id := sess.Store.DuplicateElement(el.ID)
	s.emitDocumentChanged(ctx, sess)
	dup, _ := sess.Store.Element(id)
	return jsonResult(summarizeElement(dup))
}

func (s *Server) handleAlignElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	a := editor.Alignment(req.GetString("alignment", ""))
	if err := sess.Store.AlignElement(el.ID, a); err != nil {
		return nil, err
	}
	s.emitDocumentChanged(ctx, sess)
	updated, _ := sess.Store.Element(el.ID)
	return jsonResult(updated.Transform.Position)
}

func (s *Server) handleMoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, el, err := s.elementFor(req)
	if err != nil {
		return nil, err
	}
	sess.Store.MoveElement(el.ID, int(getFloat(req.GetArguments(), "index", 0)))
	s.emitDocumentChanged(ctx, sess)
	return jsonResult(summarizeElements(sess.Store.Elements()))
}

func (s *Server) handleArrangeElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	doc := sess.Store.Snapshot()
	var movable []domain.Element
	for _, el := range doc.Elements {
		if !el.Hidden && !el.Locked {
			movable = append(movable, el)
		}
	}
	// Bottom of the stack goes first so reading order follows creation.
	for i, j := 0, len(movable)-1; i < j; i, j = i+1, j-1 {
		movable[i], movable[j] = movable[j], movable[i]
	}
	for i, pos := range s.layout.Arrange(doc.Canvas, movable) {
		if err := sess.Store.UpdateElementTransform(movable[i].ID, domain.TransformPatch{Position: &pos}); err != nil {
			return nil, err
		}
	}
	s.emitDocumentChanged(ctx, sess)
	return jsonResult(summarizeElements(sess.Store.Elements()))
}
