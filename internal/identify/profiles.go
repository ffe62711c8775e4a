package identify

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/gray-media-core/internal/renderer"
	"github.com/nerrad567/gray-media-core/internal/renderer/profiles"
)

// ProfileSources lists where renderer definitions come from. They load in
// this order, which is also the matching tie-break order: built-ins, then the
// operator's profile directory, then custom profiles from the database.
type ProfileSources struct {
	// Dir is an optional directory of additional YAML definitions.
	Dir string

	// Custom is the optional store of profiles created through the API.
	Custom renderer.Repository
}

// LoadRegistry reads every definition source and builds a registry.
// Definitions that do not compile are skipped and logged by BuildRegistry;
// unreadable sources are errors.
func LoadRegistry(ctx context.Context, src ProfileSources, logger Logger) (*renderer.Registry, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	defs, err := renderer.LoadDefinitions(profiles.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("loading built-in profiles: %w", err)
	}

	if src.Dir != "" {
		dirDefs, err := renderer.LoadDefinitions(os.DirFS(src.Dir), ".")
		if err != nil {
			return nil, fmt.Errorf("loading profiles from %s: %w", src.Dir, err)
		}
		defs = append(defs, dirDefs...)
	}

	if src.Custom != nil {
		custom, err := src.Custom.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading custom profiles: %w", err)
		}
		defs = append(defs, custom...)
	}

	reg, _ := renderer.BuildRegistry(defs, logger)
	return reg, nil
}
