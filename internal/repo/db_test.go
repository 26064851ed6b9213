package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-order-core/internal/domain"
)

// newTestDB opens a migrated file-backed SQLite database in a temp dir.
// File-backed databases (rather than shared-cache memory) behave like
// production under concurrent writers.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	// NORMAL == 1
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	// Single connection so writers queue instead of failing with SQLITE_BUSY.
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 1 {
		t.Fatalf("expected MaxOpenConnections=1, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Order{}, &domain.LineItem{}, &domain.StatusEntry{}, &domain.Idempotency{}, &domain.OrderEvent{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Quick round-trip to prove the schema is usable.
	o, err := CreateOrder(context.Background(), db, NewOrder{
		IdempotencyKey: "k1", BuyerRef: "b1", Currency: "USD", AmountTotal: 100,
		LineItems: []domain.LineItem{{ProductRef: "p1", Quantity: 1, UnitPrice: 100}},
	}, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	var got domain.Order
	if err := db.First(&got, "id = ?", o.ID).Error; err != nil || got.BuyerRef != "b1" {
		t.Fatalf("readback order failed: err=%v got=%+v", err, got)
	}
}

func TestOpen_SelectsDriver(t *testing.T) {
	if _, err := Open("mysql", "", ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open(DriverPostgres, "", "  "); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}

	db, err := Open("", filepath.Join(t.TempDir(), "default.db"), "")
	if err != nil {
		t.Fatalf("Open default driver: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if isPostgres(db) {
		t.Fatalf("default driver should be sqlite, got %s", db.Dialector.Name())
	}
}

func TestEnableTracing_RegistersPlugin(t *testing.T) {
	db := newTestDB(t)
	if err := EnableTracing(db); err != nil {
		t.Fatalf("EnableTracing: %v", err)
	}
	// Queries keep working with the plugin installed (noop tracer provider).
	if _, _, err := OrderStats(context.Background(), db, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after enabling tracing, got %v", err)
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
