package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, sealer *Sealer) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, sealer), mock
}

func TestPostgresEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tenant_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSealsToken(t *testing.T) {
	sealer, err := NewSealer(testKey)
	require.NoError(t, err)
	store, mock := newMockStore(t, sealer)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenant_sessions")).
		WithArgs("demo.example.com", sealedArg{}, "write_marketing_events", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.SaveTenantSession(context.Background(), Record{
		TenantID:    "demo.example.com",
		AccessToken: "shpat_secret",
		Scope:       "write_marketing_events",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookup(t *testing.T) {
	store, mock := newMockStore(t, nil)
	created := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, access_token, scope, created_at FROM tenant_sessions")).
		WithArgs("demo.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "access_token", "scope", "created_at"}).
			AddRow("demo.example.com", "shpat_plain", "read_products", created))

	rec, err := store.LookupTenantSession(context.Background(), "demo.example.com")
	require.NoError(t, err)
	assert.Equal(t, Record{TenantID: "demo.example.com", AccessToken: "shpat_plain", Scope: "read_products", CreatedAt: created}, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupMissing(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_sessions")).
		WithArgs("missing.example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.LookupTenantSession(context.Background(), "missing.example.com")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func TestPostgresLookupDatabaseError(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenant_sessions")).
		WillReturnError(errors.New("connection reset"))

	_, err := store.LookupTenantSession(context.Background(), "demo.example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresRevoke(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tenant_sessions WHERE tenant_id = $1")).
		WithArgs("demo.example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RevokeTenantSession(context.Background(), "demo.example.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// sealedArg matches any value produced by Sealer.Seal.
type sealedArg struct{}

func (sealedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, sealedPrefix) && !strings.Contains(s, "shpat_secret")
}
