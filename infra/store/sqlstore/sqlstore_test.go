package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/internal/storetest"
)

var dbSeq atomic.Int64

func openSQLite(t *testing.T) storetest.Backend {
	t.Helper()
	dsn := fmt.Sprintf("file:sqlstore_%d.db?mode=memory&cache=shared", dbSeq.Add(1))
	s, err := Open(context.Background(), Config{Dialect: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, openSQLite)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t).(*Store)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Migrate(context.Background()))
	assert.Equal(t, "sqlite", s.Dialect())
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", pgDialect.rebind(q))
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "SQLite3"} {
		d, err := dialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.name)
	}
	d, err := dialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.driver)
	_, err = dialectFor("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	assert.True(t, strings.HasPrefix(sqliteDSN("file:x?mode=memory"), "file:x?mode=memory&_pragma="))
	assert.Equal(t, "a.db?_pragma=journal_mode(wal)", sqliteDSN("a.db?_pragma=journal_mode(wal)"))
}

func TestSchemaStatements(t *testing.T) {
	lite := statements(schemaSQLite)
	pg := statements(schemaPostgres)
	assert.Equal(t, len(lite), len(pg))
	for _, s := range pg {
		assert.NotContains(t, s, "AUTOINCREMENT")
	}
}
