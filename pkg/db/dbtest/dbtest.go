// Package dbtest opens throwaway sqlite databases carrying the Boost schema for
// repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db"
)

// schema mirrors pkg/migrate/migrations with sqlite types.
var schema = []string{
	`CREATE TABLE merchants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		locations TEXT NOT NULL DEFAULT '{}',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME,
		deleted_by TEXT
	)`,
	`CREATE TABLE offers (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		discount_text TEXT NOT NULL,
		terms TEXT,
		cap_daily INTEGER NOT NULL,
		active_hours TEXT,
		value_per_redemption NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		ends_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE tokens (
		id TEXT PRIMARY KEY,
		offer_id TEXT NOT NULL,
		short_code TEXT NOT NULL,
		qr_data TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		is_universal BOOLEAN NOT NULL DEFAULT 1,
		expires_at DATETIME NOT NULL,
		created_at DATETIME,
		redeemed_at DATETIME,
		redeemed_by_location TEXT,
		last_redeemed_at DATETIME,
		last_redeemed_by_location TEXT
	)`,
	`CREATE UNIQUE INDEX ux_tokens_active_short_code ON tokens (short_code) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX ux_tokens_active_universal_offer ON tokens (offer_id) WHERE status = 'active' AND is_universal = 1`,
	`CREATE TABLE redemptions (
		id TEXT PRIMARY KEY,
		token_id TEXT NOT NULL,
		offer_id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		method TEXT NOT NULL,
		location TEXT NOT NULL,
		value NUMERIC NOT NULL,
		redeemed_at DATETIME NOT NULL,
		created_by TEXT
	)`,
	`CREATE INDEX idx_redemptions_offer_time ON redemptions (offer_id, redeemed_at)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL,
		redemption_id TEXT NOT NULL UNIQUE,
		offer_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE users (
		uid TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		role TEXT,
		merchant_id TEXT,
		is_primary BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME,
		created_by TEXT,
		updated_at DATETIME
	)`,
	`CREATE TABLE pending_roles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		merchant_id TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		claimed BOOLEAN NOT NULL DEFAULT 0,
		claimed_at DATETIME,
		claimed_by TEXT
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a fresh in-memory database with the schema applied. The pool is
// capped at one connection so concurrent transactions serialize the way row
// locks serialize them on postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Client wraps Open in the shared db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}
