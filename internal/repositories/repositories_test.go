package repositories

import (
	"path/filepath"
	"testing"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "repositories.db")
	db, _, err := database.Open(config.DatabaseConfig{DSN: dsn, AutoMigrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	return db
}
