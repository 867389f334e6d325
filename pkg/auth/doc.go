// Package auth authenticates requests against the identity provider.
//
// A request carries an OIDC ID token as a bearer credential. Middleware
// verifies it with go-oidc and stores the resulting Principal in the
// request context. The signed-in principal's email is the only input the
// rbac package uses to resolve a UserAccess record.
//
//	verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
//		IssuerURL: "https://login.example.com",
//		ClientID:  "sims",
//	})
//	router.Use(auth.NewMiddleware(verifier, false).Handler)
//
// Handlers then read the principal with PrincipalFromContext.
package auth
