// Package session resolves the verified tenant session behind an inbound
// admin request and stores tenants' offline access tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

var (
	// ErrUnauthenticated means the request carries no live tenant session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound means no session is stored for the tenant.
	ErrNotFound = errors.New("tenant session not found")
)

// AdminSession is the identity forwarded with every proxied command. It is
// scoped to one request and never persisted. AccessToken is excluded from
// JSON, fmt and zap output.
type AdminSession struct {
	TenantID    string `json:"tenantId"`
	AccessToken string `json:"-"`
}

func (s AdminSession) String() string {
	return fmt.Sprintf("AdminSession{tenant=%s}", s.TenantID)
}

func (s AdminSession) GoString() string {
	return s.String()
}

func (s AdminSession) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tenant", s.TenantID)
	return nil
}

// Record is a tenant's stored offline session.
type Record struct {
	TenantID    string
	AccessToken string
	Scope       string
	CreatedAt   time.Time
}

// Store persists tenant sessions on behalf of the identity layer.
type Store interface {
	SaveTenantSession(ctx context.Context, rec Record) error
	LookupTenantSession(ctx context.Context, tenantID string) (Record, error)
	RevokeTenantSession(ctx context.Context, tenantID string) error
	Ping(ctx context.Context) error
	Close() error
}
