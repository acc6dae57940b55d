package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("showcase_code",
		mcp.WithPromptDescription("Turn a piece of code into a presentable snippet image"),
		mcp.WithArgument("snippetId",
			mcp.ArgumentDescription("Snippet to edit"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("language",
			mcp.ArgumentDescription("Language of the code"),
		),
	), s.handleShowcasePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("compare_code",
		mcp.WithPromptDescription("Lay out a before/after comparison of two code versions"),
		mcp.WithArgument("snippetId",
			mcp.ArgumentDescription("Snippet to edit"),
			mcp.RequiredArgument(),
		),
	), s.handleComparePrompt)
}

func (s *Server) handleShowcasePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	snippetID := req.Params.Arguments["snippetId"]
	language := req.Params.Arguments["language"]
	if language == "" {
		language = "the code's language"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Showcase code in snippet %s", snippetID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Prepare snippet "%s" for sharing. Follow these steps:

1. Use open_snippet to start a session, then get_document to see the current layout
2. Put the code in the code editor element with update_element ({"code":{"code":"...","language":"%s"}})
3. Give the title text element a short, descriptive heading
4. Use align_element with center-horizontal on both elements so they line up
5. Adjust the canvas with set_canvas if the code does not fit
6. Call flush_session, then export_snippet to check the result

Keep the background readable against the editor theme.`, snippetID, language),
				},
			},
		},
	}, nil
}

func (s *Server) handleComparePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	snippetID := req.Params.Arguments["snippetId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Before/after comparison in snippet %s", snippetID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a before/after comparison in snippet "%s". Follow these steps:

1. Use open_snippet, then widen the canvas with set_canvas (e.g. width 1600)
2. Put the original code in the existing code editor, then duplicate_element it for the new version
3. Update the copy's code with update_element
4. Add two text elements labelled "Before" and "After" with add_text_element
5. Run arrange_elements, then fine-tune with update_transform and align_element
6. Finish with flush_session

Use the light theme for one editor only if the contrast helps.`, snippetID),
				},
			},
		},
	}, nil
}
