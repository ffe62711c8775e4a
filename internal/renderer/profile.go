package renderer

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"braces.dev/errtrace"
)

// UnknownName is the display name of the Unknown sentinel profile.
const UnknownName = "Unknown renderer"

// caseInsensitive is prepended to every pattern before compilation.
const caseInsensitive = "(?i)"

// Unknown is returned by the Resolver when a forced default renderer is
// configured but does not name a loaded profile. It has no patterns, is never
// registered and is never produced by pattern matching.
var Unknown = &Profile{name: UnknownName, index: -1}

// Definition is the uncompiled form of a renderer profile, as read from a
// definition file or the custom profile store.
type Definition struct {
	// Name identifies the renderer. Unique, compared case-insensitively.
	Name string `yaml:"name" json:"name"`

	// UserAgent holds regular expressions searched (unanchored,
	// case-insensitive) in user-agent header lines.
	UserAgent []string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	// Headers holds secondary recognition rules for other request headers.
	Headers []HeaderDefinition `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Properties carries device-specific delivery hints (transcoding targets,
	// metadata quirks). The identification engine never interprets them.
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`

	// Source records where the definition came from (file path or "database").
	Source string `yaml:"-" json:"source,omitempty"`
}

// HeaderDefinition pairs a header name with a value pattern.
type HeaderDefinition struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// headerRule is the compiled form of a HeaderDefinition.
type headerRule struct {
	name    string
	pattern *regexp.Regexp
}

// Profile is a compiled renderer profile. It is immutable once built and safe
// to share between goroutines.
type Profile struct {
	name       string
	userAgent  []*regexp.Regexp
	headers    []headerRule
	properties map[string]string
	source     string

	// index is the load-order position assigned by the Registry.
	// It is only ever used as the matching tie-break.
	index int
}

// NewProfile validates and compiles a definition.
//
// Returns ErrInvalidProfile when the name or a header rule is empty, and
// ErrInvalidPattern when a pattern is empty or does not compile.
func NewProfile(def Definition) (*Profile, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, errtrace.Wrap(fmt.Errorf("%w: name is required", ErrInvalidProfile))
	}
	if strings.EqualFold(name, UnknownName) {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %q is reserved", ErrInvalidProfile, UnknownName))
	}

	p := &Profile{
		name:       name,
		userAgent:  make([]*regexp.Regexp, 0, len(def.UserAgent)),
		headers:    make([]headerRule, 0, len(def.Headers)),
		properties: maps.Clone(def.Properties),
		source:     def.Source,
	}

	for _, expr := range def.UserAgent {
		re, err := compilePattern(expr)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("profile %q user agent: %w", name, err))
		}
		p.userAgent = append(p.userAgent, re)
	}

	for _, h := range def.Headers {
		headerName := strings.TrimSpace(h.Name)
		if headerName == "" {
			return nil, errtrace.Wrap(fmt.Errorf("%w: profile %q has a header rule without a name", ErrInvalidProfile, name))
		}
		re, err := compilePattern(h.Pattern)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("profile %q header %s: %w", name, headerName, err))
		}
		p.headers = append(p.headers, headerRule{name: headerName, pattern: re})
	}

	return p, nil
}

func compilePattern(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errtrace.Wrap(fmt.Errorf("%w: empty pattern", ErrInvalidPattern))
	}
	re, err := regexp.Compile(caseInsensitive + expr)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %w", ErrInvalidPattern, err))
	}
	return re, nil
}

// Name returns the renderer name as written in its definition.
func (p *Profile) Name() string { return p.name }

// Index returns the load-order position, or -1 for Unknown.
func (p *Profile) Index() int { return p.index }

// Source returns where the profile definition came from.
func (p *Profile) Source() string { return p.source }

// IsUnknown reports whether p is the Unknown sentinel.
func (p *Profile) IsUnknown() bool { return p == Unknown }

// Property returns a delivery hint by key.
func (p *Profile) Property(key string) (string, bool) {
	v, ok := p.properties[key]
	return v, ok
}

// Definition returns the uncompiled form of the profile.
// The returned value is a copy; callers can safely modify it.
func (p *Profile) Definition() Definition {
	def := Definition{
		Name:       p.name,
		Properties: maps.Clone(p.properties),
		Source:     p.source,
	}
	for _, re := range p.userAgent {
		def.UserAgent = append(def.UserAgent, patternSource(re))
	}
	for _, h := range p.headers {
		def.Headers = append(def.Headers, HeaderDefinition{Name: h.name, Pattern: patternSource(h.pattern)})
	}
	return def
}

// matchesUserAgent reports whether any user-agent pattern is found in line.
func (p *Profile) matchesUserAgent(line string) bool {
	for _, re := range p.userAgent {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// matchesHeader reports whether any header rule accepts the header.
func (p *Profile) matchesHeader(name, value string) bool {
	for _, h := range p.headers {
		if strings.EqualFold(h.name, name) && h.pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (p *Profile) String() string { return p.name }

// LogValue implements slog.LogValuer.
func (p *Profile) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", p.name),
		slog.Int("index", p.index),
	)
}

func patternSource(re *regexp.Regexp) string {
	return strings.TrimPrefix(re.String(), caseInsensitive)
}
