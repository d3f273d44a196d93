package cache

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"gatehouse/internal/infrastructure/persistence/sqlite/model"
)

func setupCache(t *testing.T) *SQLiteCache {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "station.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.SnapshotKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewSQLiteCache(db)
}

func TestSetGetDelete(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "ticket:tkt-1", `{"admitted":true}`, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get(ctx, "ticket:tkt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"admitted":true}` {
		t.Fatalf("Get() = %q, %v", value, found)
	}

	// Overwrite wins.
	if err := c.Set(ctx, "ticket:tkt-1", `{"admitted":false}`, 0); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	value, _, err = c.Get(ctx, "ticket:tkt-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != `{"admitted":false}` {
		t.Fatalf("Get() after overwrite = %q", value)
	}

	if err := c.Delete(ctx, "ticket:tkt-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = c.Get(ctx, "ticket:tkt-1")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() found deleted key")
	}
}

func TestMissingKey(t *testing.T) {
	c := setupCache(t)

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("Get(absent) found = true")
	}

	if err := c.Delete(context.Background(), "absent"); err != nil {
		t.Fatalf("Delete(absent) error = %v", err)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	c := setupCache(t)

	if err := c.Set(context.Background(), "  ", "v", 0); err == nil {
		t.Fatalf("Set(empty key) error = nil")
	}
	if _, _, err := c.Get(context.Background(), ""); err == nil {
		t.Fatalf("Get(empty key) error = nil")
	}
}
