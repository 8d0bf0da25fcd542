package webhook

import (
	"testing"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/database"
	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"gorm.io/gorm"
)

// testDB connects to the MySQL database named by TEST_DB_DSN, or by the DB_*
// variables when DB_NAME is set, and empties the pipeline tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := env.GetEnv("TEST_DB_DSN", "")
	if dsn == "" && env.GetEnv("DB_NAME", "") != "" {
		dsn = database.DSN()
	}
	if dsn == "" {
		t.Skip("Skipping MySQL-dependent test: TEST_DB_DSN or DB_NAME not set")
	}

	db, err := database.Open(dsn)
	if err != nil {
		t.Skipf("Skipping MySQL-dependent test: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		t.Skipf("Skipping MySQL-dependent test: database not reachable")
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	for _, table := range []interface{}{
		&models.WebhookLedgerEntry{},
		&models.PaymentTransaction{},
		&models.Order{},
		&models.BillingSubscription{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
