// ABOUTME: HTTP client for the external identity provider (GoTrue-style REST API)
// ABOUTME: Covers sign-up, password sign-in, sign-out, and current-session queries

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Identity is the authenticated user as reported by the provider.
// The ID is opaque to this codebase; it scopes all persisted analytics data.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Session holds the provider-issued tokens for an authenticated identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"identity"`
}

// Provider talks to the external identity provider. Authentication is fully
// delegated: this client never stores passwords and never mints tokens.
type Provider struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider creates an identity provider client for the given project URL
// and public (anon) API key.
func NewProvider(baseURL, anonKey string) *Provider {
	return &Provider{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default().With("component", "identity"),
	}
}

// providerError is the error payload shape the provider returns on non-2xx.
type providerError struct {
	Message     string `json:"msg"`
	Description string `json:"error_description"`
}

func (e *providerError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Description
}

// tokenResponse is the provider's session payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName string `json:"full_name"`
		} `json:"user_metadata"`
	} `json:"user"`
}

func (r *tokenResponse) session() *Session {
	return &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
		Identity: Identity{
			ID:       r.User.ID,
			Email:    r.User.Email,
			FullName: r.User.UserMetadata.FullName,
		},
	}
}

// SignUp registers a new identity with the provider.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"full_name": fullName,
		},
	}

	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}
	return resp.session(), nil
}

// SignInWithPassword exchanges email/password credentials for a session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp tokenResponse
	if err := p.post(ctx, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	return resp.session(), nil
}

// SignOut revokes the session held by the given access token.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.post(ctx, "/auth/v1/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// CurrentUser queries the provider for the identity behind an access token.
func (p *Provider) CurrentUser(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	p.setHeaders(req, accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.decodeError(resp)
	}

	var user struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName string `json:"full_name"`
		} `json:"user_metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}

	return &Identity{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.UserMetadata.FullName,
	}, nil
}

// post issues a JSON POST to the provider and decodes the response into out
// when out is non-nil.
func (p *Provider) post(ctx context.Context, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setHeaders(req, accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (p *Provider) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", p.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.anonKey)
	}
}

func (p *Provider) decodeError(resp *http.Response) error {
	var perr providerError
	if err := json.NewDecoder(resp.Body).Decode(&perr); err == nil && perr.text() != "" {
		return fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, perr.text())
	}
	return fmt.Errorf("identity provider returned %d", resp.StatusCode)
}
