package test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/infra/store/sqlstore"
	"github.com/kilianp07/pailas/internal/storetest"
	"github.com/kilianp07/pailas/test/util"
)

func TestPostgresConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if !util.DockerAvailable() {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	host, port, cleanup, err := util.StartPostgres(ctx)
	if err != nil {
		t.Skipf("postgres container: %v", err)
	}
	defer cleanup()

	admin, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: "postgres", DSN: util.PostgresDSN(host, port, util.PostgresDB)})
	require.NoError(t, err)
	defer func() { _ = admin.Close() }()

	var seq atomic.Int64
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		t.Helper()
		name := fmt.Sprintf("conformance_%d", seq.Add(1))
		_, err := admin.DB().ExecContext(ctx, "CREATE DATABASE "+name)
		require.NoError(t, err)
		s, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: "postgres", DSN: util.PostgresDSN(host, port, name), MaxOpenConns: 4})
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
