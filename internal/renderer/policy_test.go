package renderer

import (
	"net/netip"
	"sync"
	"testing"
)

func TestForcedDefault(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{
		DefaultRenderer: "PlayStation 3",
		ForceDefault:    true,
	})

	lines := []string{
		"User-Agent: AirPlayer/1.0.09 CFNetwork/485.13.9 Darwin/11.0.0",
		"User-Agent: Unknown Renderer",
		"X-Unknown-Header: Unknown Content",
	}
	for _, line := range lines {
		got, ok := lookupLine(res, line)
		if !ok || got.Name() != "PlayStation 3" {
			t.Errorf("lookup(%q) = %v, %v, want PlayStation 3", line, got, ok)
		}
	}

	got, ok := res.LookupBySocketAddress(netip.MustParseAddr("10.9.8.7"))
	if !ok || got.Name() != "PlayStation 3" {
		t.Errorf("LookupBySocketAddress() = %v, %v, want PlayStation 3", got, ok)
	}
}

func TestForcedDefaultIgnoresCase(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{
		DefaultRenderer: "xbmc",
		ForceDefault:    true,
	})
	if got, ok := res.LookupByUserAgent("User-Agent: PLAYSTATION 3"); !ok || got.Name() != "XBMC" {
		t.Errorf("LookupByUserAgent() = %v, %v, want XBMC", got, ok)
	}
}

func TestBogusDefault(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{
		DefaultRenderer: "Bogus Renderer",
		ForceDefault:    true,
		ForceIP:         "XBMC@10.0.0.1",
	})

	lines := []string{
		"User-Agent: AirPlayer/1.0.09 CFNetwork/485.13.9 Darwin/11.0.0",
		"User-Agent: Unknown Renderer",
		"X-Unknown-Header: Unknown Content",
	}
	for _, line := range lines {
		got, ok := lookupLine(res, line)
		if !ok || got != Unknown {
			t.Errorf("lookup(%q) = %v, %v, want Unknown", line, got, ok)
		}
		if got.Name() != "Unknown renderer" {
			t.Errorf("Unknown name = %q", got.Name())
		}
	}

	got, ok := res.LookupBySocketAddress(netip.MustParseAddr("10.0.0.1"))
	if !ok || !got.IsUnknown() {
		t.Errorf("LookupBySocketAddress() = %v, %v, want Unknown", got, ok)
	}
}

func TestDefaultWithoutForce(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{DefaultRenderer: "PlayStation 3"})

	if got, ok := res.LookupByUserAgent("User-Agent: Unknown Renderer"); ok {
		t.Errorf("LookupByUserAgent() = %v, want no match when default is not forced", got)
	}
	if got, ok := res.LookupByUserAgent("User-Agent: XBMC/10.0"); !ok || got.Name() != "XBMC" {
		t.Errorf("LookupByUserAgent() = %v, %v, want XBMC", got, ok)
	}

	def, ok := res.DefaultProfile()
	if !ok || def.Name() != "PlayStation 3" {
		t.Errorf("DefaultProfile() = %v, %v", def, ok)
	}
}

func TestSetPolicy(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{})
	line := "User-Agent: XBMC/10.0"

	res.SetPolicy(Policy{DefaultRenderer: "Realtek", ForceDefault: true})
	if got, _ := res.LookupByUserAgent(line); got.Name() != "Realtek" {
		t.Errorf("forced lookup = %v, want Realtek", got)
	}

	res.SetPolicy(Policy{DefaultRenderer: "Realtek"})
	if got, _ := res.LookupByUserAgent(line); got.Name() != "XBMC" {
		t.Errorf("unforced lookup = %v, want XBMC", got)
	}

	res.SetPolicy(Policy{ForceIP: "XBMC@10.0.0.1,Nope@10.0.0.2"})
	if stats := res.LastRebuild(); stats.Exact != 1 || stats.Dropped != 1 {
		t.Errorf("LastRebuild() = %+v", stats)
	}
	if got := res.Policy(); got.ForceIP != "XBMC@10.0.0.1,Nope@10.0.0.2" {
		t.Errorf("Policy() = %+v", got)
	}
}

func TestReplaceRegistry(t *testing.T) {
	first, _ := BuildRegistry([]Definition{
		{Name: "Alpha", UserAgent: []string{"alpha"}},
	}, nil)
	second, _ := BuildRegistry([]Definition{
		{Name: "Beta", UserAgent: []string{"alpha", "beta"}},
	}, nil)

	res := NewResolver(first, Policy{
		DefaultRenderer: "Beta",
		ForceIP:         "Beta@10.0.0.1,Alpha@10.0.0.2",
	})
	addr := netip.MustParseAddr("10.0.0.1")

	if _, ok := res.LookupBySocketAddress(addr); ok {
		t.Fatal("Beta override should be dropped while Beta is not loaded")
	}
	if got, _ := res.LookupByUserAgent("alpha/1"); got.Name() != "Alpha" {
		t.Fatalf("LookupByUserAgent() = %v, want Alpha", got)
	}

	res.ReplaceRegistry(second)

	if got, ok := res.LookupBySocketAddress(addr); !ok || got.Name() != "Beta" {
		t.Errorf("after replace LookupBySocketAddress() = %v, %v, want Beta", got, ok)
	}
	if got, ok := res.LookupBySocketAddress(netip.MustParseAddr("10.0.0.2")); ok {
		t.Errorf("stale Alpha override survived: %v", got)
	}
	if got, _ := res.LookupByUserAgent("alpha/1"); got.Name() != "Beta" {
		t.Errorf("after replace LookupByUserAgent() = %v, want Beta", got)
	}
	if res.Registry() != second {
		t.Error("Registry() does not return the replacement")
	}
}

func TestResolverAmbiguityHookSurvivesReplace(t *testing.T) {
	defs := []Definition{
		{Name: "One", UserAgent: []string{"shared"}},
		{Name: "Two", UserAgent: []string{"shared"}},
	}
	reg, _ := BuildRegistry(defs, nil)

	var mu sync.Mutex
	var reported int
	res := NewResolver(reg, Policy{}, WithAmbiguityHook(func(Ambiguity) {
		mu.Lock()
		reported++
		mu.Unlock()
	}))

	res.LookupByUserAgent("shared")
	reg2, _ := BuildRegistry(defs, nil)
	res.ReplaceRegistry(reg2)
	res.LookupByUserAgent("shared")

	mu.Lock()
	defer mu.Unlock()
	if reported != 2 {
		t.Errorf("hook reported %d times, want 2", reported)
	}
}

func TestResolverConcurrentPolicyChanges(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{})
	addr := netip.MustParseAddr("192.168.1.1")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res.LookupByUserAgent("User-Agent: XBMC/10.0")
				res.LookupByAdditionalHeader(`X-AV-Client-Info: mn="PLAYSTATION 3"`)
				res.LookupBySocketAddress(addr)
			}
		}()
	}

	for i := range 100 {
		res.SetPolicy(Policy{
			DefaultRenderer: "XBMC",
			ForceDefault:    i%2 == 0,
			ForceIP:         []string{"", "PlayStation 3@192.168.1.*"}[i%3%2],
		})
	}
	close(stop)
	wg.Wait()

	res.SetPolicy(Policy{ForceIP: "PlayStation 3@192.168.1.*"})
	if got, ok := res.LookupBySocketAddress(addr); !ok || got.Name() != "PlayStation 3" {
		t.Errorf("LookupBySocketAddress() = %v, %v", got, ok)
	}
}

// Alternating between a forced default and an unforced override for the same
// address must never expose a state where neither answers.
func TestSetPolicyPublishesTableWithPolicy(t *testing.T) {
	forced := Policy{DefaultRenderer: "XBMC", ForceDefault: true}
	pinned := Policy{ForceIP: "PlayStation 3@192.168.1.20"}
	res := NewResolver(builtinRegistry(t), pinned)
	addr := netip.MustParseAddr("192.168.1.20")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		misses  int
		skewed  int
		stop    = make(chan struct{})
		readers = 4
	)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := res.LookupBySocketAddress(addr); !ok {
					mu.Lock()
					misses++
					mu.Unlock()
				}
				if s := res.state.Load(); s.overrides.spec != s.policy.ForceIP {
					mu.Lock()
					skewed++
					mu.Unlock()
				}
			}
		}()
	}

	for i := range 2000 {
		if i%2 == 0 {
			res.SetPolicy(forced)
		} else {
			res.SetPolicy(pinned)
		}
	}
	close(stop)
	wg.Wait()

	if misses != 0 {
		t.Errorf("LookupBySocketAddress() missed %d times during policy swaps", misses)
	}
	if skewed != 0 {
		t.Errorf("saw %d snapshots whose override table does not match the policy", skewed)
	}
}
