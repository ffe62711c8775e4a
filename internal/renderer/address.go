package renderer

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"braces.dev/errtrace"
)

// OctetKind enumerates the octet specifier forms of the override grammar.
type OctetKind uint8

// Octet specifier kinds.
const (
	OctetExact OctetKind = iota
	OctetWildcard
	OctetBounds
)

// OctetMatcher accepts a single IPv4 octet.
type OctetMatcher struct {
	Kind OctetKind
	Lo   uint8
	Hi   uint8
}

// ExactValue matches exactly v.
func ExactValue(v uint8) OctetMatcher {
	return OctetMatcher{Kind: OctetExact, Lo: v, Hi: v}
}

// Wildcard matches any octet.
func Wildcard() OctetMatcher {
	return OctetMatcher{Kind: OctetWildcard, Lo: 0, Hi: 255}
}

// Bounds matches lo..hi inclusive. Callers must ensure lo <= hi.
func Bounds(lo, hi uint8) OctetMatcher {
	return OctetMatcher{Kind: OctetBounds, Lo: lo, Hi: hi}
}

// Accepts reports whether the octet matches.
func (o OctetMatcher) Accepts(v uint8) bool {
	switch o.Kind {
	case OctetExact:
		return v == o.Lo
	case OctetWildcard:
		return true
	case OctetBounds:
		return v >= o.Lo && v <= o.Hi
	default:
		return false
	}
}

// String renders the specifier in override grammar form.
func (o OctetMatcher) String() string {
	switch o.Kind {
	case OctetExact:
		return strconv.Itoa(int(o.Lo))
	case OctetWildcard:
		return "*"
	default:
		return fmt.Sprintf("%d-%d", o.Lo, o.Hi)
	}
}

// AddressMatcher is either an exact dotted literal or a four-octet range.
type AddressMatcher struct {
	// Literal is set when every octet is an exact value.
	Literal string
	Octets  [4]OctetMatcher
}

// IsExact reports whether the matcher names a single address.
func (a AddressMatcher) IsExact() bool {
	return a.Literal != ""
}

// Accepts reports whether each of the four octets is accepted.
func (a AddressMatcher) Accepts(octets [4]byte) bool {
	for i, o := range a.Octets {
		if !o.Accepts(octets[i]) {
			return false
		}
	}
	return true
}

// String renders the matcher in override grammar form.
func (a AddressMatcher) String() string {
	if a.IsExact() {
		return a.Literal
	}
	parts := make([]string, len(a.Octets))
	for i, o := range a.Octets {
		parts[i] = o.String()
	}
	return strings.Join(parts, ".")
}

// ParseAddressSpec parses the address part of an override entry: one to four
// dot-separated octet specifiers. Missing trailing octets are wildcards, so
// "192.168.1" covers 192.168.1.0 to 192.168.1.255.
func ParseAddressSpec(spec string) (AddressMatcher, error) {
	var m AddressMatcher

	parts := strings.Split(strings.TrimSpace(spec), ".")
	if len(parts) > len(m.Octets) {
		return m, errtrace.Wrap(fmt.Errorf("%w: %q has %d octets", ErrInvalidAddressSpec, spec, len(parts)))
	}

	allExact := len(parts) == len(m.Octets)
	for i := range m.Octets {
		if i >= len(parts) {
			m.Octets[i] = Wildcard()
			continue
		}
		o, err := parseOctet(parts[i])
		if err != nil {
			return AddressMatcher{}, errtrace.Wrap(fmt.Errorf("address %q: %w", spec, err))
		}
		if o.Kind != OctetExact {
			allExact = false
		}
		m.Octets[i] = o
	}

	if allExact {
		m.Literal = fmt.Sprintf("%d.%d.%d.%d", m.Octets[0].Lo, m.Octets[1].Lo, m.Octets[2].Lo, m.Octets[3].Lo)
	}
	return m, nil
}

// parseOctet parses digits, "*" or "a-b".
func parseOctet(s string) (OctetMatcher, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return Wildcard(), nil
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		l, err := parseOctetValue(lo)
		if err != nil {
			return OctetMatcher{}, errtrace.Wrap(err)
		}
		h, err := parseOctetValue(hi)
		if err != nil {
			return OctetMatcher{}, errtrace.Wrap(err)
		}
		if l > h {
			return OctetMatcher{}, errtrace.Wrap(fmt.Errorf("%w: inverted range %q", ErrInvalidOctet, s))
		}
		return Bounds(l, h), nil
	}

	v, err := parseOctetValue(s)
	if err != nil {
		return OctetMatcher{}, errtrace.Wrap(err)
	}
	return ExactValue(v), nil
}

// parseOctetValue accepts a run of ASCII digits whose value is 0..255, so
// leading zeros of any length are allowed. strconv alone would also accept a
// sign.
func parseOctetValue(s string) (uint8, error) {
	if s == "" {
		return 0, errtrace.Wrap(fmt.Errorf("%w: %q", ErrInvalidOctet, s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errtrace.Wrap(fmt.Errorf("%w: %q", ErrInvalidOctet, s))
		}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errtrace.Wrap(fmt.Errorf("%w: %q out of range", ErrInvalidOctet, s))
	}
	return uint8(v), nil
}

// ipv4 returns the IPv4 form of addr, unmapping IPv4-mapped IPv6 addresses.
func ipv4(addr netip.Addr) (netip.Addr, bool) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}
