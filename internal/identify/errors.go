package identify

import "errors"

// Domain-specific errors for identification operations.
var (
	// ErrNoResolver is returned by NewService without a resolver.
	ErrNoResolver = errors.New("identify: resolver is required")

	// ErrEmptyPolicyUpdate is returned when a policy update changes nothing.
	ErrEmptyPolicyUpdate = errors.New("identify: policy update has no fields")

	// ErrInvalidPolicyUpdate is returned for an undecodable policy payload.
	ErrInvalidPolicyUpdate = errors.New("identify: invalid policy update")

	// ErrCustomProfilesUnavailable is returned by the custom profile
	// operations when no profile repository is configured.
	ErrCustomProfilesUnavailable = errors.New("identify: custom profile store not configured")

	// ErrSightingsUnavailable is returned when sighting recording is disabled.
	ErrSightingsUnavailable = errors.New("identify: sightings not recorded")

	// ErrSightingNotFound is returned when no sighting exists for an address.
	ErrSightingNotFound = errors.New("identify: sighting not found")
)
