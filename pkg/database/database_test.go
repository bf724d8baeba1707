package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/pkg/config"
)

type sample struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func TestNewConnection_SQLiteCreatesNestedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := NewConnection(&config.Config{DatabaseDriver: config.DriverSQLite, DatabaseURL: path})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, &sample{}))
	require.NoError(t, db.Create(&sample{ID: "a", Name: "x"}).Error)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewConnection_UnknownDriver(t *testing.T) {
	_, err := NewConnection(&config.Config{DatabaseDriver: "oracle"})
	assert.Error(t, err)
}

func TestEnsureDirForSQLite_SkipsMemory(t *testing.T) {
	assert.NoError(t, ensureDirForSQLite("file::memory:?cache=shared"))
	assert.NoError(t, ensureDirForSQLite("plain.db"))
}
