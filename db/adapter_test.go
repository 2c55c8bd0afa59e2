package db

import (
	"path/filepath"
	"testing"

	"github.com/kasuganosora/mvabs/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteFile(t *testing.T) {
	db, err := Open(config.DatabaseConfig{
		Mode:       ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "abs.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE t (id INTEGER)").Error)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"})
	assert.Error(t, err)
}
