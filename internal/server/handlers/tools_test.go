package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptfill/promptfill/internal/core/store"
	"github.com/promptfill/promptfill/internal/tools"
)

func newToolsMux(t *testing.T, maxBody int64) http.Handler {
	t.Helper()
	router, err := tools.NewRouter(store.NewMemory())
	require.NoError(t, err)

	h := NewToolsHandler(router, maxBody)
	mux := chi.NewRouter()
	mux.Get("/v1/tools", h.List)
	mux.Post("/v1/tools/{name}", h.Call)
	return mux
}

func postTool(mux http.Handler, name, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools/"+name, strings.NewReader(body)))
	return rec
}

func TestToolsList(t *testing.T) {
	mux := newToolsMux(t, 1<<20)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ToolListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Tools, 9)
	for _, def := range resp.Tools {
		assert.True(t, strings.HasPrefix(def.Description, tools.DescriptionPrefix), def.Name)
		assert.NotEmpty(t, def.InputSchema, def.Name)
	}
}

func TestToolsCall(t *testing.T) {
	mux := newToolsMux(t, 1<<20)

	t.Run("RenderKeepsKeyOrder", func(t *testing.T) {
		rec := postTool(mux, tools.RenderPrompt, `{"template":"Data: {{o}}","values":{"o":{"z":1,"a":2}}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Tool   string `json:"tool"`
			Result struct {
				RenderedPrompt string `json:"rendered_prompt"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, tools.RenderPrompt, resp.Tool)
		assert.Equal(t, `Data: {"z":1,"a":2}`, resp.Result.RenderedPrompt)
	})

	t.Run("SaveThenDuplicate", func(t *testing.T) {
		rec := postTool(mux, tools.SaveTemplate, `{"name":"greet","template":"Hi {{name}}"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = postTool(mux, tools.SaveTemplate, `{"name":"greet","template":"Hello"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		var resp errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
	})

	t.Run("InvalidPlaceholder", func(t *testing.T) {
		rec := postTool(mux, tools.SaveTemplate, `{"name":"bad","template":"{{ a b }}"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingTemplate", func(t *testing.T) {
		rec := postTool(mux, tools.GetTemplate, `{"name":"nope"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("UnknownTool", func(t *testing.T) {
		rec := postTool(mux, "drop_tables", `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("UnknownField", func(t *testing.T) {
		rec := postTool(mux, tools.ListTemplates, `{"page":2}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestToolsCallBodyLimit(t *testing.T) {
	mux := newToolsMux(t, 32)

	rec := postTool(mux, tools.ExtractPromptFields, `{"prompt_text":"`+strings.Repeat("x", 64)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "exceeds 32 bytes")
}
