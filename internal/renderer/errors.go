package renderer

import "errors"

// Domain errors for the renderer package.
//
// Lookups never return errors; these describe definition and override
// problems and can be checked with errors.Is():
//
//	if errors.Is(err, renderer.ErrUnknownRenderer) {
//	    // override entry names a renderer that is not loaded
//	}
var (
	// ErrProfileNotFound is returned when a named renderer profile does not exist.
	ErrProfileNotFound = errors.New("renderer: profile not found")

	// ErrDuplicateProfile is returned when a profile name is already registered
	// (names compare case-insensitively).
	ErrDuplicateProfile = errors.New("renderer: duplicate profile name")

	// ErrInvalidProfile is returned when a profile definition fails validation.
	ErrInvalidProfile = errors.New("renderer: invalid profile")

	// ErrInvalidPattern is returned when a user-agent or header pattern does not compile.
	ErrInvalidPattern = errors.New("renderer: invalid pattern")

	// ErrMalformedOverride is returned for a forced-IP entry that is not "name@address".
	ErrMalformedOverride = errors.New("renderer: malformed override entry")

	// ErrUnknownRenderer is returned for a forced-IP entry naming an unregistered renderer.
	ErrUnknownRenderer = errors.New("renderer: unknown renderer in override")

	// ErrInvalidOctet is returned for an octet specifier that is not a value,
	// a wildcard or an ascending range within 0-255.
	ErrInvalidOctet = errors.New("renderer: invalid octet specifier")

	// ErrInvalidAddressSpec is returned when an override address has the wrong shape.
	ErrInvalidAddressSpec = errors.New("renderer: invalid address specification")
)
