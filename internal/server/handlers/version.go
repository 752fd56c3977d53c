package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata injected from main.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
	appIdentity  *appidentity.Identity
)

func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

func SetAppIdentity(identity *appidentity.Identity) {
	appIdentity = identity
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Service      ServiceInfo `json:"service"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// ServiceInfo describes what this process serves.
type ServiceInfo struct {
	MCPPath     string   `json:"mcp_path"`
	StoreDriver string   `json:"store_driver,omitempty"`
	Tools       []string `json:"tools"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// NewVersionHandler serves build metadata together with service.
func NewVersionHandler(service ServiceInfo) http.HandlerFunc {
	if service.Tools == nil {
		service.Tools = []string{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := "promptfill"
		if appIdentity != nil && appIdentity.BinaryName != "" {
			name = appIdentity.BinaryName
		}
		deps := crucible.GetVersion()

		writeJSON(w, http.StatusOK, VersionResponse{
			App: AppInfo{
				Name:      name,
				Version:   AppVersion,
				Commit:    AppCommit,
				BuildDate: AppBuildDate,
				GoVersion: runtime.Version(),
			},
			Service: service,
			Dependencies: DepInfo{
				Gofulmen: deps.Gofulmen,
				Crucible: deps.Crucible,
			},
			Runtime: RuntimeInfo{
				Platform:      runtime.GOOS + "/" + runtime.GOARCH,
				NumCPU:        runtime.NumCPU(),
				NumGoroutines: runtime.NumGoroutine(),
			},
		})
	}
}
