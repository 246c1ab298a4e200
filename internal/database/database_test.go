package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/printbridge/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	cases := []struct {
		dbType string
		want   string
	}{
		{"sqlite", "sqlite"},
		{"", "sqlite"},
		{"postgres", "postgres"},
		{"mysql", "mysql"},
	}
	for _, tc := range cases {
		d, err := Dialect(config.Config{DBType: tc.dbType, DBPath: "x.db"})
		require.NoError(t, err, tc.dbType)
		assert.Equal(t, tc.want, d.Name())
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", SQLiteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", SQLiteDSN("file:a.db?mode=rwc"))
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	db, err := Open(config.Config{DBType: "sqlite", DBPath: path}, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, sqlDB.Ping())
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: printer_profiles.is_default")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
	assert.False(t, IsDuplicateKeyErr(nil))
}
