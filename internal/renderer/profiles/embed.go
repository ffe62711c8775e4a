// Package profiles embeds the built-in renderer definitions.
package profiles

import "embed"

// FS holds the built-in definitions. Load them with
// renderer.LoadDefinitions(profiles.FS, ".").
//
//go:embed *.yaml
var FS embed.FS
