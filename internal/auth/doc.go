// Package auth delegates authentication to the external identity provider.
//
// # Overview
//
// The console never stores passwords and never mints its own tokens. The
// Provider client wraps the provider's REST API (sign-up, password sign-in,
// sign-out, current-user). Sessions persist between runs in a JSON file,
// which plays the role browser storage played for the original dashboard.
//
// # Session Gate
//
// Gate guards protected operations. It resolves the current identity at most
// once per process and caches the result:
//
//   - RequireSignedIn: returns the identity, or navigates to the sign-in
//     view and returns ErrRedirected.
//   - RequireSignedOut: the inverse, for public-only views.
//
// A redirect is a navigation, not a recoverable error: after ErrRedirected
// the caller must stop.
//
// # Token Verification
//
// JWTVerifier optionally verifies access tokens locally (HS256 with the
// project's JWT secret). Without a secret, claims are extracted unverified
// and the provider round trip remains the authority.
package auth
