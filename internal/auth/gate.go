// ABOUTME: Session gate guarding protected and public-only views
// ABOUTME: Resolves the current identity once per run and redirects on mismatch

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Views the gate can redirect to. Navigation is delegated to the caller via
// the Navigator; the gate only decides where to go.
const (
	ViewSignIn    = "signin"
	ViewDashboard = "dashboard"
)

// ErrRedirected is returned by the Require methods after a redirect has been
// issued. Callers must not continue with the guarded operation.
var ErrRedirected = errors.New("redirected")

// SessionSource resolves the current session, typically backed by the
// persisted session file plus a provider round trip.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

// Navigator performs a view change. In the original dashboard this was a full
// page redirect, after which no further code ran.
type Navigator func(view string)

// Gate guards views behind the external identity provider. The provider is
// contacted at most once per Gate; the result is cached for the lifetime of
// the process, mirroring one session query per page load.
type Gate struct {
	source   SessionSource
	navigate Navigator
	logger   *slog.Logger

	once     sync.Once
	identity *Identity
	err      error
}

// NewGate creates a session gate. A nil navigator disables redirects, which
// is the useful mode for non-interactive commands.
func NewGate(source SessionSource, navigate Navigator) *Gate {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &Gate{
		source:   source,
		navigate: navigate,
		logger:   slog.Default().With("component", "gate"),
	}
}

// CurrentIdentity resolves the authenticated identity, or nil when signed
// out. The session source is consulted exactly once; subsequent calls return
// the cached result.
func (g *Gate) CurrentIdentity(ctx context.Context) (*Identity, error) {
	g.once.Do(func() {
		sess, err := g.source.CurrentSession(ctx)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				return
			}
			g.err = fmt.Errorf("resolving session: %w", err)
			return
		}
		g.identity = &sess.Identity
	})
	return g.identity, g.err
}

// RequireSignedIn returns the current identity, or redirects to the sign-in
// view and returns ErrRedirected when no identity is available.
func (g *Gate) RequireSignedIn(ctx context.Context) (*Identity, error) {
	identity, err := g.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		g.logger.Debug("no session, redirecting to sign-in")
		g.navigate(ViewSignIn)
		return nil, ErrRedirected
	}
	return identity, nil
}

// RequireSignedOut redirects already-authenticated users to the dashboard
// view. Used by public-only views such as sign-in and sign-up.
func (g *Gate) RequireSignedOut(ctx context.Context) error {
	identity, err := g.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	if identity != nil {
		g.logger.Debug("already signed in, redirecting to dashboard", "identity", identity.ID)
		g.navigate(ViewDashboard)
		return ErrRedirected
	}
	return nil
}

// FileSessionSource resolves sessions from the persisted session file and
// validates the access token against the provider.
type FileSessionSource struct {
	File     *SessionFile
	Provider *Provider
	Verifier TokenVerifier
}

// CurrentSession loads the persisted session and confirms the identity with
// the provider. A rejected or expired token clears the stored session.
func (s *FileSessionSource) CurrentSession(ctx context.Context) (*Session, error) {
	sess, err := s.File.Load()
	if err != nil {
		return nil, err
	}

	if s.Verifier != nil {
		if _, verr := s.Verifier.Verify(sess.AccessToken); verr != nil {
			_ = s.File.Clear()
			return nil, ErrNoSession
		}
	}

	if s.Provider != nil {
		identity, perr := s.Provider.CurrentUser(ctx, sess.AccessToken)
		if perr != nil {
			_ = s.File.Clear()
			return nil, ErrNoSession
		}
		sess.Identity = *identity
	}

	return sess, nil
}
