package renderer

import (
	"strings"
	"sync/atomic"
)

// MatchKind identifies which recognition signal a match was made on.
type MatchKind string

// Match kinds.
const (
	MatchUserAgent        MatchKind = "user_agent"
	MatchAdditionalHeader MatchKind = "header"
)

// Ambiguity describes a header line accepted by more than one profile.
// Winner is the profile that was returned (the first in load order); Others
// lists every later profile that also matched.
type Ambiguity struct {
	Kind   MatchKind
	Line   string
	Winner *Profile
	Others []*Profile
}

// AmbiguityHook receives ambiguous matches so that profile authors can
// tighten overlapping patterns. It is called synchronously on the lookup path
// and must not block.
type AmbiguityHook func(Ambiguity)

// Matcher matches header lines against every profile of a registry in load
// order. The first profile that matches wins; no attempt is made to prefer a
// more specific pattern, because real device definitions overlap (two devices
// can share a fragment of their identification strings) and the load-order
// outcome is what existing deployments observe.
//
// Matcher is safe for concurrent use.
type Matcher struct {
	registry *Registry
	hook     atomic.Pointer[AmbiguityHook]
}

// NewMatcher creates a matcher over the given registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// SetAmbiguityHook installs (or, with nil, removes) the ambiguity hook.
// Installing a hook makes each matching lookup scan the full registry; the
// returned profile does not change.
func (m *Matcher) SetAmbiguityHook(hook AmbiguityHook) {
	if hook == nil {
		m.hook.Store(nil)
		return
	}
	m.hook.Store(&hook)
}

// MatchUserAgent returns the first profile, in load order, having a user-agent
// pattern found anywhere in line.
func (m *Matcher) MatchUserAgent(line string) (*Profile, bool) {
	return m.first(MatchUserAgent, line, func(p *Profile) bool {
		return p.matchesUserAgent(line)
	})
}

// MatchAdditionalHeader returns the first profile, in load order, having a
// header rule whose name equals the line's header name (ignoring case) and
// whose pattern is found in the header value. The line has the form
// "Name: value"; a line without a colon never matches.
func (m *Matcher) MatchAdditionalHeader(line string) (*Profile, bool) {
	name, value, ok := splitHeaderLine(line)
	if !ok {
		return nil, false
	}
	return m.first(MatchAdditionalHeader, line, func(p *Profile) bool {
		return p.matchesHeader(name, value)
	})
}

// MatchAllUserAgent returns every profile whose user-agent patterns accept
// line, in load order. Intended for diagnostics.
func (m *Matcher) MatchAllUserAgent(line string) []*Profile {
	return m.all(func(p *Profile) bool {
		return p.matchesUserAgent(line)
	})
}

// MatchAllAdditionalHeader returns every profile whose header rules accept
// line, in load order. Intended for diagnostics.
func (m *Matcher) MatchAllAdditionalHeader(line string) []*Profile {
	name, value, ok := splitHeaderLine(line)
	if !ok {
		return nil
	}
	return m.all(func(p *Profile) bool {
		return p.matchesHeader(name, value)
	})
}

func (m *Matcher) first(kind MatchKind, line string, accept func(*Profile) bool) (*Profile, bool) {
	hook := m.hook.Load()
	if hook == nil {
		for p := range m.registry.All() {
			if accept(p) {
				return p, true
			}
		}
		return nil, false
	}

	matches := m.all(accept)
	if len(matches) == 0 {
		return nil, false
	}
	if len(matches) > 1 {
		(*hook)(Ambiguity{
			Kind:   kind,
			Line:   line,
			Winner: matches[0],
			Others: matches[1:],
		})
	}
	return matches[0], true
}

func (m *Matcher) all(accept func(*Profile) bool) []*Profile {
	var matches []*Profile
	for p := range m.registry.All() {
		if accept(p) {
			matches = append(matches, p)
		}
	}
	return matches
}

// splitHeaderLine splits "Name: value" at the first colon.
func splitHeaderLine(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}
