package renderer

import (
	"fmt"
	"iter"
	"strings"

	"braces.dev/errtrace"
)

// Logger defines the logging interface used by the renderer package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the loaded renderer profiles in load order together with a
// case-insensitive name index.
//
// A Registry is filled once during startup and is read-only afterwards, so it
// can be shared by any number of goroutines without locking. Register must not
// be called once the registry has been handed to a Resolver; a reload builds a
// new Registry and swaps it in with Resolver.ReplaceRegistry.
type Registry struct {
	ordered []*Profile
	byName  map[string]*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Profile),
	}
}

// BuildRegistry compiles definitions in order and registers them.
//
// A definition that fails to compile, or whose name is already taken, is
// skipped and logged; the rest still load. The number of skipped definitions
// is returned alongside the registry.
func BuildRegistry(defs []Definition, logger Logger) (*Registry, int) {
	if logger == nil {
		logger = noopLogger{}
	}

	r := NewRegistry()
	skipped := 0
	for _, def := range defs {
		p, err := NewProfile(def)
		if err == nil {
			err = r.Register(p)
		}
		if err != nil {
			skipped++
			logger.Warn("renderer definition skipped",
				"name", def.Name,
				"source", def.Source,
				"error", err,
			)
			continue
		}
	}

	logger.Info("renderer registry built", "profiles", r.Len(), "skipped", skipped)
	return r, skipped
}

// Register appends a profile to the registry and assigns its load-order index.
// Returns ErrDuplicateProfile if a profile with the same name (ignoring case)
// is already registered.
func (r *Registry) Register(p *Profile) error {
	if p == nil || p == Unknown {
		return errtrace.Wrap(fmt.Errorf("%w: cannot register %v", ErrInvalidProfile, p))
	}

	key := nameKey(p.name)
	if existing, ok := r.byName[key]; ok {
		return errtrace.Wrap(fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateProfile, p.name, existing.name))
	}

	p.index = len(r.ordered)
	r.ordered = append(r.ordered, p)
	r.byName[key] = p
	return nil
}

// FindByName looks a profile up by name, ignoring case.
func (r *Registry) FindByName(name string) (*Profile, bool) {
	p, ok := r.byName[nameKey(name)]
	return p, ok
}

// All returns the profiles in load order. The sequence is lazy and can be
// ranged over any number of times.
func (r *Registry) All() iter.Seq[*Profile] {
	return func(yield func(*Profile) bool) {
		for _, p := range r.ordered {
			if !yield(p) {
				return
			}
		}
	}
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns the registered profile names in load order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for p := range r.All() {
		names = append(names, p.name)
	}
	return names
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
