// Package prompts implements MCP prompt handlers for requirements review.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the req-review MCP prompt.
// It guides the AI through analyzing a requirements document and
// walking the user through the findings.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("req-review",
		mcp.WithPromptDescription(
			"Review a requirements document (SRS or user stories) for conflicts, "+
				"ambiguities and weak wording, then go through the fixes together.",
		),
		mcp.WithArgument("file_path",
			mcp.ArgumentDescription("Path of a .txt or .docx requirements file. Leave empty to paste text instead."),
		),
		mcp.WithArgument("model",
			mcp.ArgumentDescription("Model to analyze with. Default: the configured precise model"),
		),
	)
}

// Handle processes the req-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var path, model string
	if args := req.Params.Arguments; args != nil {
		path = strings.TrimSpace(args["file_path"])
		model = strings.TrimSpace(args["model"])
	}

	var call string
	switch {
	case path != "" && model != "":
		call = fmt.Sprintf("Run `req_analyze` with file_path='%s' and model='%s'.", path, model)
	case path != "":
		call = fmt.Sprintf("Run `req_analyze` with file_path='%s'.", path)
	case model != "":
		call = fmt.Sprintf("Ask me to paste my requirements, then run `req_analyze` with that text and model='%s'.", model)
	default:
		call = "Ask me to paste my requirements, then run `req_analyze` with that text."
	}

	description := "Review requirements"
	if path != "" {
		description = fmt.Sprintf("Review requirements: %s", path)
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to review my requirements before we build anything.\n\n" +
						"Please:\n" +
						"1. " + call + "\n" +
						"2. Go through the conflicts first: for each pair, tell me which requirement you would keep and why\n" +
						"3. Then the ambiguities: ask me for the missing numbers, actors or conditions\n" +
						"4. Show the suggested rewrites, updated with my answers\n" +
						"5. When we are done, offer to export the analysis with `req_export`",
				),
			},
		},
	}, nil
}
