// Package auth issues and validates the bearer tokens guarding the admin API
// of Gray Media Core.
//
// There are no user accounts. Tokens are HS256 JWTs minted from the shared
// secret in security.jwt.secret (see "graymedia token") and carry a role:
//
//   - viewer: may read renderer state, including sightings and the live feed
//   - admin: may also change the policy and manage custom profiles
//
// Roles map to permissions statically; nothing is looked up at request time.
package auth
