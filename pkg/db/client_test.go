package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

type probe struct {
	ID   int
	Name string
}

func openProbeDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&probe{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		if pool, err := conn.DB(); err == nil {
			_ = pool.Close()
		}
	})
	return conn
}

func countProbes(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(&probe{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := openProbeDB(t)
	client := NewWithConn(conn)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&probe{Name: "kept"}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&probe{Name: "dropped"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
	if n := countProbes(t, conn); n != 1 {
		t.Fatalf("expected 1 row after rollback, got %d", n)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := openProbeDB(t)
	client := NewWithConn(conn)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&probe{Name: "half-done"})
			panic("render crashed")
		})
	}()

	if n := countProbes(t, conn); n != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", n)
	}
}

func TestWithTxThreadsDBContext(t *testing.T) {
	conn := openProbeDB(t)
	client := NewWithConn(conn)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		dbc := dbctx.New(context.Background(), tx)
		if !dbc.InTx() {
			t.Fatal("expected transaction-bound context")
		}
		return dbc.DB(conn).Create(&probe{Name: "via-dbctx"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	var found probe
	if err := conn.Where("name = ?", "via-dbctx").First(&found).Error; err != nil {
		t.Fatalf("expected committed row: %v", err)
	}
	if dbctx.Background(context.Background()).InTx() {
		t.Fatal("background context should not carry a transaction")
	}
}

func TestPingAndSQLHandle(t *testing.T) {
	client := NewWithConn(openProbeDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if pool, err := client.SQL(); err != nil || pool == nil {
		t.Fatalf("expected sql handle, got %v %v", pool, err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openProbeDB(t)
	if err := conn.Exec("CREATE TABLE uniq_probe (code TEXT PRIMARY KEY)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := conn.Exec("INSERT INTO uniq_probe (code) VALUES ('a')").Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := conn.Exec("INSERT INTO uniq_probe (code) VALUES ('a')").Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unrelated error should not be a unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not be a unique violation")
	}
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"})
	ql := newQueryLogger(logg, 10*time.Millisecond)

	long := "SELECT * FROM agreement_signatures WHERE signature_data = '" + strings.Repeat("x", 1000) + "'"
	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return long, 1 }, nil)

	out := buf.String()
	if !strings.Contains(out, "db.slow_query") {
		t.Fatalf("expected slow query entry, got %s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 300)) {
		t.Fatalf("expected statement to be truncated: %s", out)
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found queries should stay quiet: %s", buf.String())
	}

	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	if buf.Len() != 0 {
		t.Fatalf("silent mode should log nothing: %s", buf.String())
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{DSN: "  "}, nil); err == nil {
		t.Fatal("expected error without DSN")
	}
}
