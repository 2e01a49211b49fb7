// Package app exposes the panel's same-origin HTTP surface: it resolves the
// tenant session behind each request and forwards commands through the proxy
// gateway.
package app

import (
	"context"
	"crypto/hmac"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/auth"
	"github.com/andrearcaina/uofthacks-2026/internal/config"
	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
	"github.com/andrearcaina/uofthacks-2026/internal/rbac"
	"github.com/andrearcaina/uofthacks-2026/internal/session"
	"github.com/andrearcaina/uofthacks-2026/internal/util"
)

type gateway interface {
	Forward(ctx context.Context, cmd proxy.Command, sess session.AdminSession) proxy.Envelope
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    session.Store
	resolver *session.Resolver
	gateway  gateway
	logger   *zap.Logger
	now      func() time.Time
}

func New(cfg config.Config, store session.Store, gw gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		resolver: session.NewResolver([]byte(cfg.AppSecret), cfg.AppAPIKey, store),
		gateway:  gw,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate resolves the request's tenant session and its granted scopes.
func (s *Service) Authenticate(r *http.Request) (session.AdminSession, rbac.Grants, error) {
	return s.resolver.ResolveWithGrants(r)
}

// Execute forwards one command for an authenticated session.
func (s *Service) Execute(ctx context.Context, cmd proxy.Command, sess session.AdminSession) proxy.Envelope {
	return s.gateway.Forward(ctx, cmd, sess)
}

type InstallInput struct {
	TenantID    string `json:"tenantId"`
	AccessToken string `json:"accessToken"`
	Scope       string `json:"scope"`
}

type InstallResult struct {
	TenantID     string    `json:"tenantId"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"-"`
}

// Install stores the tenant's offline access token and issues a session token
// the embedded admin can present on same-origin requests.
func (s *Service) Install(ctx context.Context, input InstallInput) (InstallResult, error) {
	tenantID := auth.TenantFromDest(input.TenantID)
	accessToken := strings.TrimSpace(input.AccessToken)
	if tenantID == "" {
		return InstallResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tenantId is required")
	}
	if accessToken == "" {
		return InstallResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "accessToken is required")
	}

	now := s.now().UTC()
	if err := s.store.SaveTenantSession(ctx, session.Record{
		TenantID:    tenantID,
		AccessToken: accessToken,
		Scope:       rbac.ParseGrants(input.Scope).String(),
		CreatedAt:   now,
	}); err != nil {
		return InstallResult{}, fmt.Errorf("save tenant session: %w", err)
	}

	token, expiresAt, err := s.IssueSessionToken(tenantID)
	if err != nil {
		return InstallResult{}, err
	}
	s.logger.Info("tenant installed", zap.String("tenant", tenantID))
	return InstallResult{TenantID: tenantID, SessionToken: token, ExpiresAt: expiresAt}, nil
}

// IssueSessionToken signs a session token for tenantID with the app secret.
func (s *Service) IssueSessionToken(tenantID string) (string, time.Time, error) {
	now := s.now().UTC()
	ttl := s.cfg.SessionTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	expiresAt := now.Add(ttl)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + tenantID + "/admin",
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        util.NewID("jti"),
		},
		Dest:      "https://" + tenantID,
		SessionID: util.NewID("sess"),
	}
	if s.cfg.AppAPIKey != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.AppAPIKey}
	}
	token, err := auth.IssueToken([]byte(s.cfg.AppSecret), claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Uninstall revokes the tenant's stored session; later requests for the
// tenant are unauthenticated.
func (s *Service) Uninstall(ctx context.Context, tenant string) error {
	tenantID := auth.TenantFromDest(tenant)
	if tenantID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tenant is required")
	}
	if err := s.store.RevokeTenantSession(ctx, tenantID); err != nil {
		return fmt.Errorf("revoke tenant session: %w", err)
	}
	s.logger.Info("tenant uninstalled", zap.String("tenant", tenantID))
	return nil
}

// InstallTokenValid reports whether token matches the configured install
// token. The install hook is disabled when none is configured.
func (s *Service) InstallTokenValid(token string) bool {
	if s.cfg.InstallToken == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(auth.HashToken(token)), []byte(auth.HashToken(s.cfg.InstallToken)))
}

// Ready pings the session store and the inference service.
func (s *Service) Ready(ctx context.Context) map[string]error {
	return map[string]error{
		"sessionStore": s.store.Ping(ctx),
		"inference":    s.gateway.Ping(ctx),
	}
}
