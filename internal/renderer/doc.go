// Package renderer identifies which playback device (renderer) is talking to
// Gray Media, using only a request header line or the client's socket address.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                              Resolver                                │
//	│                            (policy.go)                               │
//	│   forced default ─▶ Unknown sentinel ─▶ matcher / override result    │
//	│                                                                      │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌────────────────┐  │
//	│  │     Matcher      │    │  OverrideTable   │    │    Registry    │  │
//	│  │    (match.go)    │    │  (override.go)   │    │ (registry.go)  │  │
//	│  │                  │    │                  │    │                │  │
//	│  │ • load order     │    │ • exact index    │    │ • load order   │  │
//	│  │ • first match    │    │ • range list     │    │ • name index   │  │
//	│  │ • ambiguity hook │    │ • result cache   │    │                │  │
//	│  └──────────────────┘    └──────────────────┘    └────────────────┘  │
//	└──────────────────────────────────────────────────────────────────────┘
//	           ▲                                              ▲
//	           │                                              │
//	┌──────────────────────┐                     ┌────────────────────────┐
//	│ Definitions (YAML)   │                     │  SQLiteRepository      │
//	│ loader.go, profiles/ │────────────────────▶│  (custom definitions)  │
//	└──────────────────────┘   BuildRegistry     └────────────────────────┘
//
// # Matching
//
// Header lines are matched against every profile in load order and the
// first profile with a matching pattern wins. Patterns are regular
// expressions searched anywhere in the line, ignoring case. Overlapping
// definitions are not ranked by specificity; an AmbiguityHook reports them.
//
// # Forced-IP overrides
//
// The forced-IP specification pins addresses to renderers:
//
//	PlayStation 3@192.168.1.1,Sony Bravia EX@192.168.0-1.*,XBMC@10.0
//
// Each octet is a value, "*" or an inclusive range "a-b". Omitted trailing
// octets are wildcards. Exact addresses win over ranges; ranges are tried in
// declaration order. Invalid entries are dropped and logged.
//
// # Usage
//
//	defs, err := renderer.LoadDefinitions(profiles.FS, ".")
//	if err != nil {
//	    return err
//	}
//	reg, _ := renderer.BuildRegistry(defs, log)
//
//	res := renderer.NewResolver(reg, renderer.Policy{
//	    DefaultRenderer: "PlayStation 3",
//	    ForceIP:         "XBMC@192.168.1.20",
//	}, renderer.WithLogger(log))
//
//	if p, ok := res.LookupBySocketAddress(addr); ok {
//	    // pinned
//	}
//	if p, ok := res.LookupByUserAgent("User-Agent: " + ua); ok {
//	    // recognised
//	}
//
// # Thread Safety
//
// All lookups are safe for concurrent use and never block on configuration
// changes. SetPolicy and ReplaceRegistry publish new immutable snapshots.
package renderer
