// Package dbtest opens throwaway SQLite databases carrying the Ledgerly
// schema so repository-backed services can be tested without Postgres.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors the goose migrations with SQLite types. Partial unique
// indexes behave the same way they do in Postgres.
var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE projects (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE clients (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  organization TEXT,
  email TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE agreements (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  service_provider_name TEXT NOT NULL,
  agreement_date DATE NOT NULL,
  service_type TEXT NOT NULL,
  start_date DATE,
  end_date DATE,
  duration INTEGER,
  duration_unit TEXT,
  revision_count INTEGER NOT NULL DEFAULT 0,
  jurisdiction TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE agreement_deliverables (
  id TEXT PRIMARY KEY,
  agreement_id TEXT NOT NULL REFERENCES agreements(id) ON DELETE CASCADE,
  description TEXT NOT NULL,
  position INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE agreement_payment_terms (
  id TEXT PRIMARY KEY,
  agreement_id TEXT NOT NULL REFERENCES agreements(id) ON DELETE CASCADE,
  structure TEXT NOT NULL,
  payment_method TEXT,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_payment_terms_agreement ON agreement_payment_terms (agreement_id);`,
	`CREATE TABLE agreement_milestones (
  id TEXT PRIMARY KEY,
  payment_term_id TEXT NOT NULL REFERENCES agreement_payment_terms(id) ON DELETE CASCADE,
  description TEXT NOT NULL,
  amount TEXT NOT NULL,
  position INTEGER NOT NULL,
  due_date DATE,
  created_at DATETIME
);`,
	`CREATE TABLE agreement_signatures (
  id TEXT PRIMARY KEY,
  agreement_id TEXT NOT NULL REFERENCES agreements(id) ON DELETE CASCADE,
  signer_type TEXT NOT NULL,
  client_id TEXT,
  signer_name TEXT NOT NULL,
  image_path TEXT NOT NULL,
  image_sha256 TEXT NOT NULL,
  ip_address TEXT,
  document_id TEXT NOT NULL,
  signed_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_agreement_signatures_provider ON agreement_signatures (agreement_id) WHERE signer_type = 'service_provider';`,
	`CREATE UNIQUE INDEX ux_agreement_signatures_client ON agreement_signatures (agreement_id, client_id) WHERE signer_type = 'client';`,
	`CREATE TABLE client_signature_links (
  id TEXT PRIMARY KEY,
  agreement_id TEXT NOT NULL REFERENCES agreements(id) ON DELETE CASCADE,
  client_id TEXT NOT NULL,
  token TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  signed_at DATETIME,
  last_sent_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_signature_links_token ON client_signature_links (token);`,
	`CREATE UNIQUE INDEX ux_signature_links_agreement_client ON client_signature_links (agreement_id, client_id);`,
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
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a private in-memory database with the full schema applied.
// The pool is pinned to one connection so every query sees the same memory
// database and foreign keys stay enabled.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s-%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
