package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres opens a pgx-backed *sql.DB and verifies connectivity.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

const tenantSessionsSchema = `CREATE TABLE IF NOT EXISTS tenant_sessions (
	tenant_id    TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	scope        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps tenant sessions in the tenant_sessions table.
type PostgresStore struct {
	db     *sql.DB
	sealer *Sealer
}

func NewPostgresStore(db *sql.DB, sealer *Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, tenantSessionsSchema); err != nil {
		return fmt.Errorf("ensure tenant_sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTenantSession(ctx context.Context, rec Record) error {
	if rec.TenantID == "" {
		return errors.New("tenant id is required")
	}
	sealed, err := s.sealer.Seal(rec.AccessToken)
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_sessions (tenant_id, access_token, scope, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE
		SET access_token = EXCLUDED.access_token, scope = EXCLUDED.scope, updated_at = now()`,
		rec.TenantID, sealed, rec.Scope, createdAt)
	if err != nil {
		return fmt.Errorf("save tenant session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupTenantSession(ctx context.Context, tenantID string) (Record, error) {
	var rec Record
	var sealed string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, access_token, scope, created_at FROM tenant_sessions WHERE tenant_id = $1`,
		tenantID,
	).Scan(&rec.TenantID, &sealed, &rec.Scope, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup tenant session: %w", err)
	}
	token, err := s.sealer.Open(sealed)
	if err != nil {
		return Record{}, err
	}
	rec.AccessToken = token
	return rec, nil
}

func (s *PostgresStore) RevokeTenantSession(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tenant_sessions WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("revoke tenant session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
