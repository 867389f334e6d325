package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrMissingEmail is returned when a verified token has no email claim
var ErrMissingEmail = errors.New("missing email in OIDC token")

// TokenVerifier turns a raw bearer token into a principal
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// OIDCConfig configures the OpenID Connect provider
type OIDCConfig struct {
	IssuerURL       string
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	Scopes          []string
	SkipIssuerCheck bool
	// GroupsClaim names the claim holding group membership
	GroupsClaim string
}

// Validate checks the fields needed to verify tokens
func (c OIDCConfig) Validate() error {
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	return nil
}

// OIDCVerifier verifies ID tokens issued by an OpenID Connect provider and
// runs the authorization-code login flow
type OIDCVerifier struct {
	config       OIDCConfig
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCVerifier discovers the provider and builds a verifier
func NewOIDCVerifier(ctx context.Context, config OIDCConfig) (*OIDCVerifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCVerifier{
		config: config,
		verifier: provider.Verifier(&oidc.Config{
			ClientID:        config.ClientID,
			SkipIssuerCheck: config.SkipIssuerCheck,
		}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// NewStaticVerifier verifies tokens against a fixed set of public keys
// without provider discovery. The login flow is unavailable.
func NewStaticVerifier(config OIDCConfig, keys ...crypto.PublicKey) (*OIDCVerifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{
		config: config,
		verifier: oidc.NewVerifier(config.IssuerURL, keySet, &oidc.Config{
			ClientID:        config.ClientID,
			SkipIssuerCheck: config.SkipIssuerCheck,
		}),
	}, nil
}

// Verify checks the token signature, audience and expiry and maps its claims
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return principalFromClaims(idToken.Subject, claims, v.config.GroupsClaim)
}

// AuthCodeURL returns the provider login URL for state
func (v *OIDCVerifier) AuthCodeURL(state string) (string, error) {
	if v.oauth2Config == nil {
		return "", fmt.Errorf("login flow is not configured")
	}
	return v.oauth2Config.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a verified ID token
func (v *OIDCVerifier) Exchange(ctx context.Context, code string) (string, *Principal, error) {
	if v.oauth2Config == nil {
		return "", nil, fmt.Errorf("login flow is not configured")
	}
	if code == "" {
		return "", nil, fmt.Errorf("missing authorization code")
	}

	token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return "", nil, fmt.Errorf("missing id_token in response")
	}

	principal, err := v.Verify(ctx, rawIDToken)
	if err != nil {
		return "", nil, err
	}
	return rawIDToken, principal, nil
}

func principalFromClaims(subject string, claims map[string]interface{}, groupsClaim string) (*Principal, error) {
	p := &Principal{
		Subject: subject,
		Email:   strings.TrimSpace(stringClaim(claims, "email")),
		Name:    stringClaim(claims, "name"),
	}
	if p.Name == "" {
		p.Name = stringClaim(claims, "preferred_username")
	}
	if groupsClaim == "" {
		groupsClaim = "groups"
	}
	p.Groups = arrayClaim(claims, groupsClaim)

	if p.Email == "" {
		return nil, ErrMissingEmail
	}
	return p, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func arrayClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
