package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getVersion(t *testing.T, service ServiceInfo) VersionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	NewVersionHandler(service).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionHandler(t *testing.T) {
	t.Cleanup(func() {
		SetVersionInfo("dev", "unknown", "unknown")
		SetAppIdentity(nil)
	})

	t.Run("BuildAndService", func(t *testing.T) {
		SetVersionInfo("1.2.3", "abcd123", "2026-01-02T03:04:05Z")
		SetAppIdentity(&appidentity.Identity{BinaryName: "promptfill"})

		resp := getVersion(t, ServiceInfo{
			MCPPath:     "/mcp",
			StoreDriver: "sqlite",
			Tools:       []string{"extract_prompt_fields", "render_prompt"},
		})
		assert.Equal(t, AppInfo{
			Name: "promptfill", Version: "1.2.3", Commit: "abcd123",
			BuildDate: "2026-01-02T03:04:05Z", GoVersion: resp.App.GoVersion,
		}, resp.App)
		assert.NotEmpty(t, resp.App.GoVersion)
		assert.Equal(t, "sqlite", resp.Service.StoreDriver)
		assert.Equal(t, []string{"extract_prompt_fields", "render_prompt"}, resp.Service.Tools)
		assert.NotEmpty(t, resp.Dependencies.Gofulmen)
		assert.NotEmpty(t, resp.Dependencies.Crucible)
	})

	t.Run("DefaultsWithoutIdentity", func(t *testing.T) {
		SetAppIdentity(nil)
		resp := getVersion(t, ServiceInfo{MCPPath: "/mcp"})
		assert.Equal(t, "promptfill", resp.App.Name)
		assert.Equal(t, []string{}, resp.Service.Tools)
	})
}
