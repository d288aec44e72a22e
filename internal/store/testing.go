package store

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CreateTempDB 为单个测试创建内存 SQLite，测试结束时关闭
func CreateTempDB(t testing.TB) *Store {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open temp db: %v", err)
	}
	// 共享缓存的内存库按表加锁，单连接避免 SQLITE_LOCKED
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("temp db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		t.Fatalf("migrate temp db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
