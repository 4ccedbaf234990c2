// Package resources implements MCP resource handlers for the analysis
// history.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (reqcheck://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HendryAvila/reqcheck/internal/export"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/mark3labs/mcp-go/mcp"
)

// RecentURI addresses the most recent analyses.
const RecentURI = "reqcheck://history/recent"

// recentLimit is how many analyses the recent resource lists.
const recentLimit = 10

// Lister is the part of the history store the resources read.
type Lister interface {
	List(opts history.ListOptions) (int, []history.Record, error)
}

// Handler manages history resource endpoints.
type Handler struct {
	store Lister
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store Lister) *Handler {
	return &Handler{store: store}
}

// RecentResource returns the MCP resource definition for recent analyses.
func (h *Handler) RecentResource() mcp.Resource {
	return mcp.NewResource(
		RecentURI,
		"Recent requirement analyses",
		mcp.WithResourceDescription("The latest saved analyses with their finding counts"),
		mcp.WithMIMEType("application/json"),
	)
}

type recentEntry struct {
	ID        int64          `json:"id"`
	CreatedAt string         `json:"created_at"`
	FileName  *string        `json:"file_name"`
	ModelUsed *string        `json:"model_used"`
	Summary   export.Summary `json:"summary"`
}

type recentDoc struct {
	Total    int           `json:"total"`
	Analyses []recentEntry `json:"analyses"`
}

// HandleRecent returns the latest analyses as JSON.
func (h *Handler) HandleRecent(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	total, records, err := h.store.List(history.ListOptions{Limit: recentLimit})
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	doc := recentDoc{Total: total, Analyses: make([]recentEntry, 0, len(records))}
	for i := range records {
		r := &records[i]
		doc.Analyses = append(doc.Analyses, recentEntry{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			FileName:  r.FileName,
			ModelUsed: r.ModelUsed,
			Summary:   export.Summarize(r.Findings()),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling recent analyses: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
