package testutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	if len(models) > 0 {
		err = db.AutoMigrate(models...)
		require.NoError(t, err)
	}

	return db
}

func CleanupTestDB(t *testing.T, db *gorm.DB, tables ...string) {
	for _, table := range tables {
		err := db.Exec("DELETE FROM " + table).Error
		require.NoError(t, err)
	}
}

// FlipHexNibble corrupts one hex character in the given colon-separated
// part of an encrypted token and returns the result.
func FlipHexNibble(t *testing.T, token string, partIndex int) string {
	parts := strings.Split(token, ":")
	require.Greater(t, len(parts), partIndex)

	part := []byte(parts[partIndex])
	require.NotEmpty(t, part)

	if part[0] == 'f' {
		part[0] = '0'
	} else {
		part[0] = 'f'
	}
	parts[partIndex] = string(part)

	return strings.Join(parts, ":")
}
