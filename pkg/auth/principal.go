package auth

import (
	"context"
	"strings"

	"github.com/platinummonkey/sims/pkg/contextkeys"
)

// Principal is the identity a verified token asserts
type Principal struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email"`
	Name    string   `json:"name,omitempty"`
	Groups  []string `json:"groups,omitempty"`
}

// NormalizedEmail returns the lower-cased, trimmed email used as the
// lookup key for role assignments
func (p *Principal) NormalizedEmail() string {
	if p == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Email))
}

// WithPrincipal stores the principal in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return contextkeys.WithPrincipal(ctx, p)
}

// PrincipalFromContext returns the principal stored by the middleware, or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
