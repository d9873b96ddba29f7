// Package repotest opens in-memory sqlite databases carrying the billing schema
// for repository and service tests.
package repotest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  external_order_id TEXT UNIQUE,
  gateway TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  purpose TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'CREATED',
  description TEXT,
  booking_id TEXT,
  due_date DATETIME,
  metadata TEXT,
  receipt_key TEXT NOT NULL,
  redirect_handle TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  external_payment_id TEXT NOT NULL UNIQUE,
  external_order_id TEXT NOT NULL,
  intent_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  gateway TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  method TEXT NOT NULL DEFAULT 'other',
  fee TEXT NOT NULL DEFAULT '0',
  tax TEXT NOT NULL DEFAULT '0',
  raw_payload TEXT,
  receipt_url TEXT,
  receipt_attempts INTEGER NOT NULL DEFAULT 0,
  receipt_error TEXT,
  processed_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  account TEXT NOT NULL,
  debit TEXT NOT NULL DEFAULT '0',
  credit TEXT NOT NULL DEFAULT '0',
  currency TEXT NOT NULL,
  description TEXT NOT NULL,
  reference_type TEXT NOT NULL,
  reference_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (transaction_id, account)
);`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  external_subscription_id TEXT NOT NULL UNIQUE,
  gateway TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  booking_id TEXT,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  purpose TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  start_at DATETIME,
  end_at DATETIME,
  total_count INTEGER,
  paid_count INTEGER NOT NULL DEFAULT 0,
  remaining_count INTEGER,
  current_start DATETIME,
  current_end DATETIME,
  charge_at DATETIME,
  short_url TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS subscription_charges (
  id TEXT PRIMARY KEY,
  subscription_id TEXT NOT NULL,
  external_charge_id TEXT NOT NULL UNIQUE,
  tenant_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  raw_payload TEXT,
  charged_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  external_refund_id TEXT NOT NULL UNIQUE,
  payment_id TEXT NOT NULL,
  intent_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  reason TEXT,
  status TEXT NOT NULL,
  raw_payload TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS rent_payments (
  id TEXT PRIMARY KEY,
  intent_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  room_no TEXT NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL,
  due_date DATETIME,
  payment_date DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS advance_payments (
  id TEXT PRIMARY KEY,
  intent_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  pg_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  payment_date DATETIME NOT NULL,
  notes TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME,
  last_error TEXT
);`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL,
  created_at DATETIME
);`,
}

// Open returns a private in-memory database with every billing table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// One connection keeps shared-cache table locks from surfacing as SQLITE_LOCKED.
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}
