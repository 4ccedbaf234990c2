package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/docs"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/service"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// errorStatus maps a service error to a status and a client-safe detail.
// Upstream response bodies never reach the client.
func errorStatus(err error) (int, string) {
	stage, staged := analysis.FailedStage(err)

	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return http.StatusBadRequest, "Text input is required"
	case errors.Is(err, service.ErrUnknownModel), errors.Is(err, service.ErrUnknownMode):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), "service: ")
	case errors.Is(err, docs.ErrUnsupportedFormat):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), "docs: ")
	case errors.Is(err, docs.ErrMalformed):
		return http.StatusBadRequest, "Could not read the uploaded document"
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, "AI provider is not configured"
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "Analysis not found"
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		if staged {
			return http.StatusGatewayTimeout, fmt.Sprintf("analysis timed out at stage %q", stage)
		}
		return http.StatusGatewayTimeout, "analysis timed out"
	case staged:
		return http.StatusBadGateway, fmt.Sprintf("analysis failed at stage %q", stage)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
