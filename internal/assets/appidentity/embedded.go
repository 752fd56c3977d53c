// Package appidentityassets embeds the PromptFill app.yaml so a standalone
// binary resolves its identity without a .fulmen directory.
package appidentityassets

import _ "embed"

//go:embed app.yaml
var YAML []byte
