package renderer

import (
	"net/netip"
	"sync"
	"sync/atomic"
)

// Policy holds the configuration values that shape lookups.
type Policy struct {
	// DefaultRenderer names the profile used when ForceDefault is set, and
	// the fallback callers may use for unrecognised clients.
	DefaultRenderer string `json:"default_renderer" yaml:"default"`

	// ForceDefault makes every lookup return the default renderer (or
	// Unknown when DefaultRenderer does not name a loaded profile).
	ForceDefault bool `json:"force_default" yaml:"force_default"`

	// ForceIP is the forced-IP override specification.
	ForceIP string `json:"force_ip" yaml:"force_ip"`
}

// resolverState is the immutable snapshot read by lookups.
type resolverState struct {
	registry    *Registry
	matcher     *Matcher
	policy      Policy
	forced      *Profile
	overrides   *overrideSnapshot
	lastRebuild RebuildStats
}

// Resolver is the single entry point for renderer lookups. It layers the
// forced-default policy over the header matcher and the override table.
//
// Lookups read one atomically published snapshot and never block on writers.
// SetPolicy and ReplaceRegistry are serialised with each other.
type Resolver struct {
	mu        sync.Mutex
	state     atomic.Pointer[resolverState]
	overrides *OverrideTable
	hook      atomic.Pointer[AmbiguityHook]

	logger     Logger
	cacheLimit int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for policy and override diagnostics.
func WithLogger(logger Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCacheLimit bounds the address resolution cache.
func WithCacheLimit(n int) Option {
	return func(r *Resolver) {
		r.cacheLimit = n
	}
}

// WithAmbiguityHook installs a hook reporting header lines that more than
// one profile accepts.
func WithAmbiguityHook(hook AmbiguityHook) Option {
	return func(r *Resolver) {
		if hook != nil {
			r.hook.Store(&hook)
		}
	}
}

// NewResolver creates a resolver over reg and builds the override table from
// policy.ForceIP. A nil registry is treated as empty.
func NewResolver(reg *Registry, policy Policy, opts ...Option) *Resolver {
	if reg == nil {
		reg = NewRegistry()
	}
	r := &Resolver{logger: noopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	r.overrides = NewOverrideTable(r.cacheLimit, r.logger)

	snap, stats := r.overrides.build(policy.ForceIP, reg)
	r.overrides.publish(snap)
	r.state.Store(&resolverState{
		registry:    reg,
		matcher:     r.newMatcher(reg),
		policy:      policy,
		forced:      r.forcedProfile(reg, policy),
		overrides:   snap,
		lastRebuild: stats,
	})
	return r
}

// LookupByUserAgent identifies a client from its user-agent header line.
func (r *Resolver) LookupByUserAgent(line string) (*Profile, bool) {
	s := r.state.Load()
	if s.forced != nil {
		return s.forced, true
	}
	return s.matcher.MatchUserAgent(line)
}

// LookupByAdditionalHeader identifies a client from a "Name: value" line of
// any other request header.
func (r *Resolver) LookupByAdditionalHeader(line string) (*Profile, bool) {
	s := r.state.Load()
	if s.forced != nil {
		return s.forced, true
	}
	return s.matcher.MatchAdditionalHeader(line)
}

// LookupBySocketAddress identifies a client from the forced-IP overrides.
func (r *Resolver) LookupBySocketAddress(addr netip.Addr) (*Profile, bool) {
	s := r.state.Load()
	if s.forced != nil {
		return s.forced, true
	}
	return s.overrides.resolve(addr)
}

// ForcedProfile returns the profile every lookup currently answers with, or
// false when the forced default is off.
func (r *Resolver) ForcedProfile() (*Profile, bool) {
	s := r.state.Load()
	return s.forced, s.forced != nil
}

// InvalidateAddressOverrides discards cached address resolutions. Callers
// changing the forced-IP specification should use SetPolicy, which also
// rebuilds the table.
func (r *Resolver) InvalidateAddressOverrides() {
	r.state.Load().overrides.cache.reset()
}

// SetPolicy publishes a new policy. When ForceIP differs from the current
// value the override table is invalidated and rebuilt before SetPolicy
// returns. The policy and the table it was built from are published as one
// snapshot, so a lookup never pairs the new table with the old policy.
func (r *Resolver) SetPolicy(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	next := *cur
	next.policy = policy
	next.forced = r.forcedProfile(cur.registry, policy)

	if policy.ForceIP != cur.policy.ForceIP {
		cur.overrides.cache.reset()
		next.overrides, next.lastRebuild = r.overrides.build(policy.ForceIP, cur.registry)
		r.overrides.publish(next.overrides)
	}

	r.state.Store(&next)
	r.logger.Info("renderer policy updated",
		"default", policy.DefaultRenderer,
		"force_default", policy.ForceDefault,
		"force_ip", policy.ForceIP,
	)
}

// ReplaceRegistry swaps in a new profile set. The forced profile is resolved
// again and the override table is rebuilt against the new registry.
func (r *Resolver) ReplaceRegistry(reg *Registry) {
	if reg == nil {
		reg = NewRegistry()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	cur.overrides.cache.reset()
	snap, stats := r.overrides.build(cur.policy.ForceIP, reg)
	r.overrides.publish(snap)

	r.state.Store(&resolverState{
		registry:    reg,
		matcher:     r.newMatcher(reg),
		policy:      cur.policy,
		forced:      r.forcedProfile(reg, cur.policy),
		overrides:   snap,
		lastRebuild: stats,
	})
	r.logger.Info("renderer registry replaced", "profiles", reg.Len())
}

// SetAmbiguityHook installs (or, with nil, removes) the ambiguity hook on the
// current and all future matchers.
func (r *Resolver) SetAmbiguityHook(hook AmbiguityHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook == nil {
		r.hook.Store(nil)
	} else {
		r.hook.Store(&hook)
	}
	r.state.Load().matcher.SetAmbiguityHook(hook)
}

// Policy returns the current policy.
func (r *Resolver) Policy() Policy {
	return r.state.Load().policy
}

// Registry returns the current registry.
func (r *Resolver) Registry() *Registry {
	return r.state.Load().registry
}

// Matcher returns the matcher over the current registry.
func (r *Resolver) Matcher() *Matcher {
	return r.state.Load().matcher
}

// Overrides returns the override table, for inspecting the published entries.
func (r *Resolver) Overrides() *OverrideTable {
	return r.overrides
}

// LastRebuild returns the statistics of the most recent override rebuild.
func (r *Resolver) LastRebuild() RebuildStats {
	return r.state.Load().lastRebuild
}

// DefaultProfile returns the profile named by the default renderer, whether
// or not it is forced. Callers use it as a fallback for unrecognised clients.
func (r *Resolver) DefaultProfile() (*Profile, bool) {
	s := r.state.Load()
	if s.policy.DefaultRenderer == "" {
		return nil, false
	}
	return s.registry.FindByName(s.policy.DefaultRenderer)
}

func (r *Resolver) newMatcher(reg *Registry) *Matcher {
	m := NewMatcher(reg)
	if hook := r.hook.Load(); hook != nil {
		m.SetAmbiguityHook(*hook)
	}
	return m
}

// forcedProfile returns the profile every lookup must return, or nil when
// lookups should match normally.
func (r *Resolver) forcedProfile(reg *Registry, policy Policy) *Profile {
	if !policy.ForceDefault {
		return nil
	}
	if p, ok := reg.FindByName(policy.DefaultRenderer); ok {
		return p
	}
	r.logger.Warn("forced default renderer not loaded, using unknown renderer",
		"default", policy.DefaultRenderer,
	)
	return Unknown
}
