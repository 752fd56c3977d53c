// Package mcpserver exposes the tool router over the Model Context Protocol
// and serves the inline widget resource alongside it.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	apperrors "github.com/promptfill/promptfill/internal/errors"
	"github.com/promptfill/promptfill/internal/tools"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "promptfill-mcp"

// Options configures the MCP server.
type Options struct {
	Version      string
	WidgetDomain string
	// AuthRequired advertises bearer auth in each tool's security schemes.
	AuthRequired bool
}

// New registers every router tool and the inline widget on a fresh MCP
// server.
func New(router *tools.Router, opts Options) *server.MCPServer {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	domain := NormalizeWidgetDomain(opts.WidgetDomain)

	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.AddResource(
		mcp.NewResource(InlineWidgetURI, "promptfill-inline",
			mcp.WithResourceDescription(inlineWidgetDescription),
			mcp.WithMIMEType(WidgetMIMEType),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      InlineWidgetURI,
					MIMEType: WidgetMIMEType,
					Text:     inlineWidgetHTML,
					Meta:     widgetMeta(domain, true),
				},
			}, nil
		},
	)

	schemes := securitySchemes(opts.AuthRequired)
	for _, def := range router.Definitions() {
		s.AddTool(toolFor(def, schemes), handlerFor(router, def.Name))
	}
	return s
}

// Handler serves s over streamable HTTP at path. Sessions are not tracked.
func Handler(s *server.MCPServer, path string) http.Handler {
	return keepRawArguments(server.NewStreamableHTTPServer(s,
		server.WithEndpointPath(path),
		server.WithStateLess(true),
	))
}

func securitySchemes(authRequired bool) []map[string]any {
	if authRequired {
		return []map[string]any{{"type": "http", "scheme": "bearer"}}
	}
	return []map[string]any{{"type": "noauth"}}
}

func toolFor(def tools.Definition, schemes []map[string]any) mcp.Tool {
	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, def.InputSchema)
	tool.Annotations = mcp.ToolAnnotation{
		Title:           def.Title,
		ReadOnlyHint:    mcp.ToBoolPtr(def.ReadOnly),
		DestructiveHint: mcp.ToBoolPtr(def.Destructive),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}

	meta := map[string]any{
		"securitySchemes":                schemes,
		"openai/toolInvocation/invoking": def.Invoking,
		"openai/toolInvocation/invoked":  def.Invoked,
	}
	if def.Widget {
		meta["ui"] = map[string]any{"resourceUri": InlineWidgetURI}
		meta["openai/outputTemplate"] = InlineWidgetURI
	}
	tool.Meta = &mcp.Meta{AdditionalFields: meta}
	return tool
}

func handlerFor(router *tools.Router, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := callArguments(ctx, name, request.Params.Arguments)
		if err != nil {
			return errorResult(tools.AsError(err, apperrors.CodeInvalidInput)), nil
		}

		result, err := router.Call(ctx, name, raw)
		if err != nil {
			return errorResult(tools.AsError(err, apperrors.CodeInternal)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{mcp.NewTextContent(result.Text)},
			StructuredContent: result.Structured,
		}, nil
	}
}

// errorResult reports a tool failure in-band so the agent can read the code.
func errorResult(toolErr *tools.Error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(toolErr.Message)},
		StructuredContent: map[string]any{
			"kind":    "error",
			"code":    toolErr.Code,
			"message": toolErr.Message,
		},
		IsError: true,
	}
}
