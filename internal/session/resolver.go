package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andrearcaina/uofthacks-2026/internal/auth"
	"github.com/andrearcaina/uofthacks-2026/internal/rbac"
)

// Resolver turns an inbound admin request into an AdminSession. It reads the
// embedded-admin session token from the Authorization header and loads the
// tenant's offline access token from the Store.
type Resolver struct {
	secret   []byte
	audience string
	store    Store
}

func NewResolver(secret []byte, audience string, store Store) *Resolver {
	return &Resolver{secret: secret, audience: audience, store: store}
}

// Resolve returns an error wrapping ErrUnauthenticated when the request has no
// live tenant session. Other errors are storage failures.
func (r *Resolver) Resolve(req *http.Request) (AdminSession, error) {
	sess, _, err := r.ResolveWithGrants(req)
	return sess, err
}

// ResolveWithGrants is Resolve plus the access scopes recorded at install.
func (r *Resolver) ResolveWithGrants(req *http.Request) (AdminSession, rbac.Grants, error) {
	token := bearerToken(req)
	if token == "" {
		return AdminSession{}, nil, fmt.Errorf("%w: missing session token", ErrUnauthenticated)
	}

	claims, err := auth.ParseToken(r.secret, r.audience, token)
	if err != nil {
		return AdminSession{}, nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	tenantID := claims.Tenant()
	rec, err := r.store.LookupTenantSession(req.Context(), tenantID)
	if errors.Is(err, ErrNotFound) {
		return AdminSession{}, nil, fmt.Errorf("%w: no stored session for %s", ErrUnauthenticated, tenantID)
	}
	if err != nil {
		return AdminSession{}, nil, fmt.Errorf("resolve session for %s: %w", tenantID, err)
	}
	if rec.AccessToken == "" {
		return AdminSession{}, nil, fmt.Errorf("%w: empty access token for %s", ErrUnauthenticated, tenantID)
	}

	return AdminSession{TenantID: tenantID, AccessToken: rec.AccessToken}, rbac.ParseGrants(rec.Scope), nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
