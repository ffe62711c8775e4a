package identify

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/nerrad567/gray-media-core/internal/renderer"
)

// Method names the signal that produced an identification.
type Method string

// Identification methods, in the order they are consulted.
const (
	MethodForced    Method = "forced"
	MethodAddress   Method = "address"
	MethodUserAgent Method = "user_agent"
	MethodHeader    Method = "header"
	MethodNone      Method = "none"
)

// Request carries what the media server knows about a client when it first
// talks to us.
type Request struct {
	// Addr is the client's socket address. The zero value skips the
	// forced-IP lookup and sighting recording.
	Addr netip.Addr

	// UserAgent is the User-Agent header value. When empty it is taken from
	// Headers.
	UserAgent string

	// Headers are the request headers. The User-Agent entry is ignored here
	// and consulted through UserAgent instead.
	Headers http.Header
}

// Result is the outcome of Identify.
type Result struct {
	// Profile is the identified renderer. With Method MethodNone it is the
	// configured default renderer, or nil when no usable default exists.
	// renderer.Unknown only appears as a forced result, when the forced
	// default names a profile that is not loaded.
	Profile *renderer.Profile

	Method Method

	// Forced reports that the forced default answered. Method is then
	// MethodForced.
	Forced bool

	// Line is the header line that matched, for user_agent and header
	// results.
	Line string
}

// Matched reports whether a lookup recognised the client.
func (r Result) Matched() bool {
	return r.Method != MethodNone
}

// Identified reports whether the result names a renderer.
func (r Result) Identified() bool {
	return r.Profile != nil
}

// ProfileName returns the profile name, or "" when the client was not
// identified.
func (r Result) ProfileName() string {
	if r.Profile == nil {
		return ""
	}
	return r.Profile.Name()
}

// PolicyUpdate is a partial policy change. Nil fields keep their value.
type PolicyUpdate struct {
	DefaultRenderer *string `json:"default_renderer,omitempty"`
	ForceDefault    *bool   `json:"force_default,omitempty"`
	ForceIP         *string `json:"force_ip,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u PolicyUpdate) IsEmpty() bool {
	return u.DefaultRenderer == nil && u.ForceDefault == nil && u.ForceIP == nil
}

// Apply returns p with the update's fields replaced.
func (u PolicyUpdate) Apply(p renderer.Policy) renderer.Policy {
	if u.DefaultRenderer != nil {
		p.DefaultRenderer = *u.DefaultRenderer
	}
	if u.ForceDefault != nil {
		p.ForceDefault = *u.ForceDefault
	}
	if u.ForceIP != nil {
		p.ForceIP = *u.ForceIP
	}
	return p
}

// PolicyState describes the active policy. It is published retained on
// graymedia/state/renderer/policy and served by the admin API.
type PolicyState struct {
	renderer.Policy

	// DefaultLoaded reports whether DefaultRenderer names a loaded profile.
	DefaultLoaded bool `json:"default_loaded"`

	Overrides OverrideSummary `json:"overrides"`
	Profiles  int             `json:"profiles"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OverrideSummary reports the outcome of the last forced-IP rebuild.
type OverrideSummary struct {
	Exact   int      `json:"exact"`
	Ranges  int      `json:"ranges"`
	Dropped int      `json:"dropped"`
	Errors  []string `json:"errors,omitempty"`
}

// IdentifiedEvent is published when a client address is seen for the first
// time or is identified as a different renderer than before.
type IdentifiedEvent struct {
	Address   string    `json:"address"`
	Profile   string    `json:"profile"`
	Previous  string    `json:"previous,omitempty"`
	Method    Method    `json:"method"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
