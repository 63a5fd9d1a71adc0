// SPDX-License-Identifier: MIT

// Package oauth connects user accounts on external music and video
// platforms and lists their playlists.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

var (
	// ErrUnknownPlatform is returned for platforms without a provider entry.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrInvalidState is returned when the state nonce is missing, expired or
	// issued for another platform.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrNoCodeFlow is returned for platforms that take a user token directly.
	ErrNoCodeFlow = errors.New("platform does not use an authorization code flow")
)

// Provider describes one platform's OAuth endpoints and API base.
type Provider struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
}

func (p Provider) codeFlow() bool {
	return p.AuthURL != "" && p.TokenURL != ""
}

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// Connection converts the token into a stored connection at now.
func (t Token) Connection(p library.Platform, now time.Time) library.Connection {
	c := library.Connection{
		Platform:     p,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
	}
	if t.ExpiresIn > 0 {
		exp := now.Add(time.Duration(t.ExpiresIn) * time.Second)
		c.ExpiresAt = &exp
	}
	return c
}

// RemotePlaylist is a playlist as reported by a platform.
type RemotePlaylist struct {
	ExternalID  string
	Name        string
	Description string
	TrackCount  int
}

type pendingState struct {
	platform library.Platform
	expires  time.Time
}

// Service holds provider settings and outstanding state nonces.
type Service struct {
	providers map[library.Platform]Provider
	callers   map[library.Platform]*upstream.Caller

	mu     sync.Mutex
	states map[string]pendingState
	now    func() time.Time
}

// NewService builds a Service for the given providers.
func NewService(providers map[library.Platform]Provider, opts upstream.Options) *Service {
	s := &Service{
		providers: make(map[library.Platform]Provider, len(providers)),
		callers:   make(map[library.Platform]*upstream.Caller, len(providers)),
		states:    make(map[string]pendingState),
		now:       time.Now,
	}
	for p, prov := range providers {
		s.providers[p] = prov
		s.callers[p] = upstream.NewCaller("oauth_"+string(p), opts)
	}
	return s
}

// Callers returns the upstream callers keyed by platform.
func (s *Service) Callers() map[library.Platform]*upstream.Caller {
	return s.callers
}

func (s *Service) provider(p library.Platform) (Provider, *upstream.Caller, error) {
	prov, ok := s.providers[p]
	if !ok {
		return Provider{}, nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, p)
	}
	return prov, s.callers[p], nil
}

// AuthorizeURL returns the provider consent URL and the state nonce that
// must come back with the code.
func (s *Service) AuthorizeURL(p library.Platform, redirectURI string) (string, string, error) {
	prov, _, err := s.provider(p)
	if err != nil {
		return "", "", err
	}
	if !prov.codeFlow() {
		return "", "", ErrNoCodeFlow
	}
	if prov.ClientID == "" {
		return "", "", fmt.Errorf("oauth_%s: %w", p, upstream.ErrNotConfigured)
	}

	state := uuid.NewString()
	s.mu.Lock()
	now := s.now()
	for k, v := range s.states {
		if now.After(v.expires) {
			delete(s.states, k)
		}
	}
	s.states[state] = pendingState{platform: p, expires: now.Add(stateTTL)}
	s.mu.Unlock()

	q := url.Values{}
	q.Set("client_id", prov.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	if len(prov.Scopes) > 0 {
		q.Set("scope", strings.Join(prov.Scopes, " "))
	}
	if p == library.PlatformYouTube {
		q.Set("access_type", "offline")
		q.Set("prompt", "consent")
	}

	sep := "?"
	if strings.Contains(prov.AuthURL, "?") {
		sep = "&"
	}
	return prov.AuthURL + sep + q.Encode(), state, nil
}

// consumeState removes state and reports whether it was valid for p.
func (s *Service) consumeState(p library.Platform, state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return pending.platform == p && !s.now().After(pending.expires)
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, p library.Platform, code, redirectURI, state string) (Token, error) {
	prov, caller, err := s.provider(p)
	if err != nil {
		return Token{}, err
	}
	if !prov.codeFlow() {
		return Token{}, ErrNoCodeFlow
	}
	if strings.TrimSpace(code) == "" {
		return Token{}, errors.New("code is required")
	}
	if !s.consumeState(p, state) {
		return Token{}, ErrInvalidState
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return s.token(ctx, prov, caller, form)
}

// Refresh obtains a new access token from a refresh token.
func (s *Service) Refresh(ctx context.Context, p library.Platform, refreshToken string) (Token, error) {
	prov, caller, err := s.provider(p)
	if err != nil {
		return Token{}, err
	}
	if !prov.codeFlow() {
		return Token{}, ErrNoCodeFlow
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	tok, err := s.token(ctx, prov, caller, form)
	if err != nil {
		return Token{}, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (s *Service) token(ctx context.Context, prov Provider, caller *upstream.Caller, form url.Values) (Token, error) {
	if prov.ClientID == "" || prov.ClientSecret == "" {
		return Token{}, fmt.Errorf("%s: %w", caller.Name(), upstream.ErrNotConfigured)
	}
	form.Set("client_id", prov.ClientID)
	form.Set("client_secret", prov.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok Token
	if err := caller.DoJSON(req, &tok); err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("%s: token response has no access_token", caller.Name())
	}
	return tok, nil
}
