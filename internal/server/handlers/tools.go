package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/tools"
)

// ToolListResponse is the body of GET /v1/tools.
type ToolListResponse struct {
	Tools []tools.Definition `json:"tools"`
}

// ToolCallResponse is the body of a successful POST /v1/tools/{name}.
type ToolCallResponse struct {
	Tool   string `json:"tool"`
	Text   string `json:"text"`
	Result any    `json:"result"`
}

// ToolsHandler exposes the tool router over plain JSON HTTP.
type ToolsHandler struct {
	router       *tools.Router
	maxBodyBytes int64
}

// NewToolsHandler serves router, rejecting bodies larger than maxBodyBytes.
func NewToolsHandler(router *tools.Router, maxBodyBytes int64) *ToolsHandler {
	return &ToolsHandler{router: router, maxBodyBytes: maxBodyBytes}
}

// List returns every tool definition with its input schema.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToolListResponse{Tools: h.router.Definitions()})
}

// Call runs the tool named in the path with the request body as arguments.
// The body is passed through undecoded so object key order survives.
func (h *ToolsHandler) Call(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.router.Lookup(name); !ok {
		writeError(w, r, apperrors.NewNotFoundError(fmt.Sprintf("unknown tool %q", name)))
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperrors.WrapInvalidInput(r.Context(), err,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "unable to read request body"))
		return
	}

	result, err := h.router.Call(r.Context(), name, raw)
	if err != nil {
		writeError(w, r, tools.AsError(err, apperrors.CodeInternal).Envelope(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, ToolCallResponse{Tool: name, Text: result.Text, Result: result.Structured})
}
