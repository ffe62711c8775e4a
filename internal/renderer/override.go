package renderer

import (
	"fmt"
	"net/netip"
	"strings"
	"sync/atomic"

	"braces.dev/errtrace"
)

// OverrideEntry is one accepted forced-IP entry.
type OverrideEntry struct {
	Profile *Profile
	Matcher AddressMatcher

	// Raw is the entry text as written in the override specification.
	Raw string
}

// RebuildStats summarises an override table rebuild.
type RebuildStats struct {
	Exact   int
	Ranges  int
	Dropped int
	Errors  []error
}

// overrideSnapshot is the immutable state published by Rebuild. The cache
// belongs to the snapshot, so results computed against a superseded spec can
// never be read back after a rebuild.
type overrideSnapshot struct {
	spec    string
	entries []OverrideEntry
	exact   map[string]*Profile
	ranges  []OverrideEntry
	cache   *resolutionCache
}

// OverrideTable resolves client addresses against the forced-IP override
// specification.
//
// Exact addresses always win over ranges, whatever their declaration order;
// ranges are tried in declaration order and the first one accepting all four
// octets wins. Only IPv4 addresses (including IPv4-mapped IPv6) can match.
//
// Resolve is lock-free apart from the cache; Rebuild swaps a whole snapshot.
type OverrideTable struct {
	snap       atomic.Pointer[overrideSnapshot]
	cacheLimit int
	logger     Logger
}

// NewOverrideTable creates an empty table. cacheLimit bounds the resolution
// cache; zero or less selects the default.
func NewOverrideTable(cacheLimit int, logger Logger) *OverrideTable {
	if logger == nil {
		logger = noopLogger{}
	}
	t := &OverrideTable{
		cacheLimit: cacheLimit,
		logger:     logger,
	}
	t.snap.Store(&overrideSnapshot{
		exact: map[string]*Profile{},
		cache: newResolutionCache(cacheLimit),
	})
	return t
}

// ParseOverrides parses a forced-IP specification:
//
//	spec  := entry (',' entry)*
//	entry := name '@' addr
//	addr  := octet ('.' octet){0,3}
//	octet := digits | '*' | digits '-' digits
//
// Entries that are malformed, name an unregistered renderer or carry an
// invalid address are dropped; one error is returned for each of them. A
// blank specification yields no entries and no errors.
func ParseOverrides(spec string, reg *Registry) ([]OverrideEntry, []error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var (
		entries []OverrideEntry
		errs    []error
	)
	for raw := range strings.SplitSeq(spec, ",") {
		entry, err := parseOverrideEntry(raw, reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errs
}

func parseOverrideEntry(raw string, reg *Registry) (OverrideEntry, error) {
	raw = strings.TrimSpace(raw)

	parts := strings.Split(raw, "@")
	if len(parts) != 2 {
		return OverrideEntry{}, errtrace.Wrap(fmt.Errorf("%w: %q", ErrMalformedOverride, raw))
	}
	name := strings.TrimSpace(parts[0])
	addr := strings.TrimSpace(parts[1])
	if name == "" || addr == "" {
		return OverrideEntry{}, errtrace.Wrap(fmt.Errorf("%w: %q", ErrMalformedOverride, raw))
	}

	p, ok := reg.FindByName(name)
	if !ok {
		return OverrideEntry{}, errtrace.Wrap(fmt.Errorf("%w: %q", ErrUnknownRenderer, name))
	}

	m, err := ParseAddressSpec(addr)
	if err != nil {
		return OverrideEntry{}, errtrace.Wrap(fmt.Errorf("entry %q: %w", raw, err))
	}

	return OverrideEntry{Profile: p, Matcher: m, Raw: raw}, nil
}

// Rebuild parses spec against reg and publishes the result, with an empty
// cache, as a single snapshot. Dropped entries are logged.
func (t *OverrideTable) Rebuild(spec string, reg *Registry) RebuildStats {
	next, stats := t.build(spec, reg)
	t.snap.Store(next)
	return stats
}

// build parses spec into an unpublished snapshot.
func (t *OverrideTable) build(spec string, reg *Registry) (*overrideSnapshot, RebuildStats) {
	entries, errs := ParseOverrides(spec, reg)

	next := &overrideSnapshot{
		spec:    spec,
		entries: entries,
		exact:   make(map[string]*Profile),
		cache:   newResolutionCache(t.cacheLimit),
	}
	for _, e := range entries {
		if e.Matcher.IsExact() {
			// Later duplicates replace earlier ones.
			next.exact[e.Matcher.Literal] = e.Profile
			continue
		}
		next.ranges = append(next.ranges, e)
	}

	for _, err := range errs {
		t.logger.Warn("forced-ip entry dropped", "error", err)
	}

	stats := RebuildStats{
		Exact:   len(next.exact),
		Ranges:  len(next.ranges),
		Dropped: len(errs),
		Errors:  errs,
	}
	t.logger.Debug("forced-ip table rebuilt",
		"exact", stats.Exact,
		"ranges", stats.Ranges,
		"dropped", stats.Dropped,
	)
	return next, stats
}

// publish makes snap the table's current snapshot.
func (t *OverrideTable) publish(snap *overrideSnapshot) {
	t.snap.Store(snap)
}

// Resolve returns the profile pinned to addr, if any. Results, including
// "no match", are cached until the next Invalidate or Rebuild.
func (t *OverrideTable) Resolve(addr netip.Addr) (*Profile, bool) {
	return t.snap.Load().resolve(addr)
}

func (s *overrideSnapshot) resolve(addr netip.Addr) (*Profile, bool) {
	key := addr.Unmap()

	if r, ok := s.cache.get(key); ok {
		return r.profile, r.profile != nil
	}

	p := s.lookup(key)
	s.cache.set(key, resolution{profile: p})
	return p, p != nil
}

func (s *overrideSnapshot) lookup(addr netip.Addr) *Profile {
	v4, ok := ipv4(addr)
	if !ok {
		return nil
	}
	if p, ok := s.exact[v4.String()]; ok {
		return p
	}
	octets := v4.As4()
	for _, e := range s.ranges {
		if e.Matcher.Accepts(octets) {
			return e.Profile
		}
	}
	return nil
}

// Invalidate discards cached results without touching the parsed entries.
// Until the next Rebuild, Resolve keeps answering from the current entries.
func (t *OverrideTable) Invalidate() {
	t.snap.Load().cache.reset()
}

// Entries returns the accepted entries in declaration order.
// The slice is a copy.
func (t *OverrideTable) Entries() []OverrideEntry {
	s := t.snap.Load()
	out := make([]OverrideEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Spec returns the specification the current snapshot was built from.
func (t *OverrideTable) Spec() string {
	return t.snap.Load().spec
}

// CacheLen returns the number of cached results.
func (t *OverrideTable) CacheLen() int {
	return t.snap.Load().cache.size()
}
