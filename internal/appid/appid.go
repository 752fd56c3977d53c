// Package appid resolves the PromptFill application identity. A
// .fulmen/app.yaml on disk or FULMEN_APP_IDENTITY_PATH wins; the identity
// embedded in the binary is the fallback.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/promptfill/promptfill/internal/assets/appidentity"
)

// Fallbacks used when no identity can be resolved at all.
const (
	DefaultBinaryName = "promptfill"
	DefaultEnvPrefix  = "PROMPTFILL_"
)

func init() {
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity's environment variable prefix, or
// DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	if identity, err := Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		return identity.EnvPrefix
	}
	return DefaultEnvPrefix
}

// BinaryName returns the identity's binary name, or DefaultBinaryName.
func BinaryName(ctx context.Context) string {
	if identity, err := Get(ctx); err == nil && identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	return DefaultBinaryName
}
