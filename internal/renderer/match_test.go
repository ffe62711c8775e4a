package renderer

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-media-core/internal/renderer/profiles"
)

// builtinRegistry loads the embedded definitions.
func builtinRegistry(t testing.TB) *Registry {
	t.Helper()

	defs, err := LoadDefinitions(profiles.FS, ".")
	if err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	reg, skipped := BuildRegistry(defs, nil)
	if skipped != 0 {
		t.Fatalf("BuildRegistry() skipped %d built-in definitions", skipped)
	}
	return reg
}

// lookupLine routes a header line the way request handling does: user-agent
// lines to the user-agent matcher, everything else to the header matcher.
func lookupLine(res *Resolver, line string) (*Profile, bool) {
	if strings.HasPrefix(strings.ToLower(line), "user-agent") {
		return res.LookupByUserAgent(line)
	}
	return res.LookupByAdditionalHeader(line)
}

var knownHeaders = []struct {
	line string
	want string
}{
	{`User-Agent: AirPlayer/1.0.09 CFNetwork/485.13.9 Darwin/11.0.0`, "AirPlayer"},
	{`User-Agent: Lavf52.54.0`, "AirPlayer"},
	{`X-AV-Client-Info: av=5.0; cn="Sony Corporation"; mn="BRAVIA KDL-32CX520"; mv="1.7";`, "Sony Bravia EX"},
	{`X-AV-Client-Info: av=5.0; cn="Sony Corporation"; mn="BRAVIA KDL-55HX750"; mv="1.7";`, "Sony Bravia HX"},
	{`User-Agent: DLNADOC/1.50 INTEL_NMPR/2.1`, "D-Link DSM-510"},
	{`User-Agent: 8player lite 2.2.3 (iPad; iPhone OS 5.0.1; nl_NL)`, "iPad / iPhone"},
	{`User-Agent: yxplayer2%20lite/1.2.7 CFNetwork/485.13.9 Darwin/11.0.0`, "iPad / iPhone"},
	{`User-Agent: MPlayer 1.0rc4-4.2.1`, "iPad / iPhone"},
	{`User-Agent: NSPlayer/4.1.0.3856`, "iPad / iPhone"},
	{`User-Agent: Allegro-Software-WebClient/4.61 DLNADOC/1.00`, "Philips Aurea"},
	{`User-Agent: Windows2000/0.0 UPnP/1.0 PhilipsIntelSDK/1.4 DLNADOC/1.50`, "Philips TV"},
	{`User-Agent: PLAYSTATION 3`, "PlayStation 3"},
	{`X-AV-Client-Info: av=5.0; cn="Sony Computer Entertainment Inc."; mn="PLAYSTATION 3"; mv="1.0"`, "PlayStation 3"},
	{`User-Agent: RealtekVOD neon/0.27.2`, "Realtek"},
	{`User-Agent: SEC_HHP_[HT]D5500/1.0`, "Samsung AllShare"},
	{`User-Agent: SEC_HHP_[TV]UE32D5000/1.0`, "Samsung AllShare"},
	{`User-Agent: SEC_HHP_ Family TV/1.0`, "Samsung AllShare"},
	{`User-Agent: SEC_HHP_[TV]PS51D6900/1.0`, "Samsung AllShare"},
	{`User-Agent: DLNADOC/1.50 SEC_HHP_[TV]UE32D5000/1.0`, "Samsung AllShare"},
	{`User-Agent: DLNADOC/1.50 SEC_HHP_[TV]UN55D6050/1.0`, "Samsung AllShare"},
	{`User-Agent: DLNADOC/1.50 SEC_HHP_ Family TV/1.0`, "Samsung AllShare"},
	{`User-Agent: Linux/2.6.35 UPnP/1.0 NDS_MHF DLNADOC/1.50`, "Samsung SMT-G7400"},
	{`User-Agent: INTEL_NMPR/2.1 DLNADOC/1.50 Intel MicroStack/1.0.1423`, "WD TV Live"},
	{`User-Agent: XBMC/10.0 r35648 (Mac OS X; 11.2.0 x86_64; http://www.xbmc.org)`, "XBMC"},
	{`User-Agent: Platinum/0.5.3.0, DLNADOC/1.50`, "XBMC"},
}

var genericHeaders = []string{
	`User-Agent: UPnP/1.0 DLNADOC/1.50`,
	`User-Agent: Unknown Renderer`,
	`X-Unknown-Header: Unknown Content`,
}

func TestKnownHeaders(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{})

	for _, tt := range knownHeaders {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := lookupLine(res, tt.line)
			if !ok {
				t.Fatalf("no renderer recognised, want %q", tt.want)
			}
			if got.Name() != tt.want {
				t.Errorf("recognised %q, want %q", got.Name(), tt.want)
			}
		})
	}
}

func TestGenericHeadersDoNotMatch(t *testing.T) {
	res := NewResolver(builtinRegistry(t), Policy{})

	for _, line := range genericHeaders {
		t.Run(line, func(t *testing.T) {
			if got, ok := lookupLine(res, line); ok {
				t.Errorf("recognised %q, want no match", got.Name())
			}
		})
	}
}

func TestMatchAdditionalHeader(t *testing.T) {
	m := NewMatcher(builtinRegistry(t))

	tests := []struct {
		name string
		line string
		want string
	}{
		{"header name ignores case", `x-av-client-info: mn="PLAYSTATION 3"`, "PlayStation 3"},
		{"value pattern ignores case", `X-AV-Client-Info: mn="playstation 3"`, "PlayStation 3"},
		{"no colon", `X-AV-Client-Info PLAYSTATION 3`, ""},
		{"empty header name", `: PLAYSTATION 3`, ""},
		{"pattern in name is not a value match", `PLAYSTATION 3: yes`, ""},
		{"user agent pattern is not a header rule", `X-AV-Client-Info: XBMC`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.MatchAdditionalHeader(tt.line)
			if tt.want == "" {
				if ok {
					t.Errorf("MatchAdditionalHeader(%q) = %q, want no match", tt.line, got.Name())
				}
				return
			}
			if !ok || got.Name() != tt.want {
				t.Errorf("MatchAdditionalHeader(%q) = %v, %v, want %q", tt.line, got, ok, tt.want)
			}
		})
	}
}

func TestMatcherLoadOrderWins(t *testing.T) {
	reg, _ := BuildRegistry([]Definition{
		{Name: "Generic Player", UserAgent: []string{"Player"}},
		{Name: "Specific Player", UserAgent: []string{`SpecificPlayer/\d+`}},
	}, nil)
	m := NewMatcher(reg)

	got, ok := m.MatchUserAgent("User-Agent: SpecificPlayer/2")
	if !ok {
		t.Fatal("MatchUserAgent() found nothing")
	}
	if got.Name() != "Generic Player" {
		t.Errorf("MatchUserAgent() = %q, want the earlier profile", got.Name())
	}
}

func TestAmbiguityHookReportsKnownConflict(t *testing.T) {
	const line = "User-Agent: POSIX UPnP/1.0 Intel MicroStack/1.0.2718, RealtekMediaCenter, DLNADOC/1.50"

	m := NewMatcher(builtinRegistry(t))

	var reports []Ambiguity
	m.SetAmbiguityHook(func(a Ambiguity) {
		reports = append(reports, a)
	})

	got, ok := m.MatchUserAgent(line)
	if !ok || got.Name() != "Popcorn Hour" {
		t.Fatalf("MatchUserAgent() = %v, %v, want Popcorn Hour", got, ok)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d ambiguity reports, want 1", len(reports))
	}

	r := reports[0]
	if r.Kind != MatchUserAgent || r.Line != line {
		t.Errorf("report = %+v", r)
	}
	if r.Winner != got {
		t.Errorf("report winner = %v, want %v", r.Winner, got)
	}
	others := make([]string, 0, len(r.Others))
	for _, p := range r.Others {
		others = append(others, p.Name())
	}
	if diff := cmp.Diff([]string{"Realtek"}, others); diff != "" {
		t.Errorf("report others mismatch (-want +got):\n%s", diff)
	}

	// Unambiguous lines are not reported.
	reports = nil
	if _, ok := m.MatchUserAgent("User-Agent: RealtekVOD neon/0.27.2"); !ok {
		t.Fatal("MatchUserAgent() found nothing for RealtekVOD")
	}
	if len(reports) != 0 {
		t.Errorf("got %d reports for an unambiguous line", len(reports))
	}

	m.SetAmbiguityHook(nil)
	if got2, _ := m.MatchUserAgent(line); got2 != got {
		t.Errorf("winner changed after removing hook: %v", got2)
	}
	if len(reports) != 0 {
		t.Errorf("hook called after removal")
	}
}

func TestMatchAll(t *testing.T) {
	m := NewMatcher(builtinRegistry(t))

	names := func(ps []*Profile) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Name())
		}
		return out
	}

	got := names(m.MatchAllUserAgent("User-Agent: POSIX UPnP/1.0 Intel MicroStack/1.0.2718, RealtekMediaCenter"))
	if diff := cmp.Diff([]string{"Popcorn Hour", "Realtek"}, got); diff != "" {
		t.Errorf("MatchAllUserAgent() mismatch (-want +got):\n%s", diff)
	}

	got = names(m.MatchAllAdditionalHeader(`X-AV-Client-Info: mn="BRAVIA KDL-40EX700"`))
	if diff := cmp.Diff([]string{"Sony Bravia EX"}, got); diff != "" {
		t.Errorf("MatchAllAdditionalHeader() mismatch (-want +got):\n%s", diff)
	}

	if got := m.MatchAllAdditionalHeader("no colon here"); got != nil {
		t.Errorf("MatchAllAdditionalHeader() = %v, want nil", got)
	}
}

func TestMatcherConcurrentUse(t *testing.T) {
	m := NewMatcher(builtinRegistry(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, tt := range knownHeaders {
				if !strings.HasPrefix(tt.line, "User-Agent") {
					continue
				}
				if got, ok := m.MatchUserAgent(tt.line); !ok || got.Name() != tt.want {
					t.Errorf("MatchUserAgent(%q) = %v, %v", tt.line, got, ok)
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkMatchUserAgent(b *testing.B) {
	m := NewMatcher(builtinRegistry(b))
	const line = "User-Agent: Platinum/0.5.3.0, DLNADOC/1.50"

	b.ResetTimer()
	for b.Loop() {
		m.MatchUserAgent(line)
	}
}
