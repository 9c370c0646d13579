package testutil

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/studyforge-backend/internal/data/db"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

var (
	dbOnce sync.Once
	tdb    *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database shared by the test binary. It uses Postgres
// when TEST_POSTGRES_DSN is set and an in-memory SQLite database otherwise.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
			NowFunc:                                  func() time.Time { return time.Now().UTC() },
		}
		if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
			tdb, dbErr = gorm.Open(postgres.Open(dsn), cfg)
		} else {
			name := fmt.Sprintf("file:studyforge_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
			tdb, dbErr = gorm.Open(sqlite.Open(name), cfg)
			if dbErr == nil {
				sqlDB, err := tdb.DB()
				if err != nil {
					dbErr = err
					return
				}
				sqlDB.SetMaxOpenConns(1)
			}
		}
		if dbErr != nil {
			return
		}
		dbErr = db.AutoMigrateAll(tdb)
	})

	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return tdb
}

// Tx opens a transaction that is rolled back when the test ends.
// With SQLite every query in the test must go through the returned handle.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

var isolatedSeq sync.Mutex

// Isolated returns a database owned by the calling test, for code that opens
// its own transactions. On Postgres it is the shared database.
func Isolated(tb testing.TB) *gorm.DB {
	tb.Helper()
	if os.Getenv("TEST_POSTGRES_DSN") != "" {
		return DB(tb)
	}
	isolatedSeq.Lock()
	name := fmt.Sprintf("file:studyforge_iso_%d?mode=memory&cache=shared", time.Now().UnixNano())
	isolatedSeq.Unlock()
	idb, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		tb.Fatalf("open isolated db: %v", err)
	}
	sqlDB, err := idb.DB()
	if err != nil {
		tb.Fatalf("isolated db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrateAll(idb); err != nil {
		tb.Fatalf("migrate isolated db: %v", err)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return idb
}
