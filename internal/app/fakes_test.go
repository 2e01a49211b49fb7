package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/andrearcaina/uofthacks-2026/internal/config"
	"github.com/andrearcaina/uofthacks-2026/internal/proxy"
	"github.com/andrearcaina/uofthacks-2026/internal/session"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]session.Record
	lookupFn func(context.Context, string) (session.Record, error)
	pingFn   func(context.Context) error
}

func newFakeStore(records ...session.Record) *fakeStore {
	fs := &fakeStore{records: make(map[string]session.Record)}
	for _, rec := range records {
		fs.records[rec.TenantID] = rec
	}
	return fs
}

func (f *fakeStore) SaveTenantSession(_ context.Context, rec session.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.TenantID] = rec
	return nil
}

func (f *fakeStore) LookupTenantSession(ctx context.Context, tenantID string) (session.Record, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, tenantID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[tenantID]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) RevokeTenantSession(_ context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, tenantID)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

type fakeGateway struct {
	mu        sync.Mutex
	calls     []proxy.Command
	sessions  []session.AdminSession
	forwardFn func(context.Context, proxy.Command, session.AdminSession) proxy.Envelope
	pingFn    func(context.Context) error
}

func (f *fakeGateway) Forward(ctx context.Context, cmd proxy.Command, sess session.AdminSession) proxy.Envelope {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.sessions = append(f.sessions, sess)
	f.mu.Unlock()
	if f.forwardFn != nil {
		return f.forwardFn(ctx, cmd, sess)
	}
	return proxy.Succeed(nil)
}

func (f *fakeGateway) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const testTenant = "demo.example.com"

func testConfig() config.Config {
	return config.Config{
		AppAPIKey:       "api-key",
		AppSecret:       "test-secret",
		InstallToken:    "install-secret",
		SessionTokenTTL: time.Hour,
	}
}

func newTestService(fs *fakeStore, fg *fakeGateway) *Service {
	return New(testConfig(), fs, fg, zap.NewNop())
}

func installedStore() *fakeStore {
	return newFakeStore(session.Record{TenantID: testTenant, AccessToken: "shpat_secret"})
}

func sessionToken(t *testing.T, svc *Service, tenant string) string {
	t.Helper()
	token, _, err := svc.IssueSessionToken(tenant)
	if err != nil {
		t.Fatalf("issue session token: %v", err)
	}
	return token
}
