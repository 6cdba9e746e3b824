package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type probe struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestOpenInMemorySqlite(t *testing.T) {
	conn, err := Open(Config{Type: "sqlite", Path: "file:dbtest?mode=memory&cache=shared"}, false)
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(&probe{}))
	require.NoError(t, conn.Create(&probe{ID: 1, Code: "a"}).Error)

	err = conn.Create(&probe{ID: 2, Code: "a"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyErr(err))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)

	for _, typ := range []string{"", "sqlite", "postgres", "mysql"} {
		d, err := Dialect(Config{Type: typ, Host: "localhost", Port: "5432"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(errors.New(`pq: duplicate key value violates unique constraint "x"`)))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}
