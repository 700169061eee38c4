package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"servicehub/internal/db"
	"servicehub/internal/migrate"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	v1, err := migrate.Migrate(conn, db.SQLite)
	require.NoError(t, err)
	require.Equal(t, 2, v1)

	v2, err := migrate.Migrate(conn, db.SQLite)
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM service_providers`).Scan(&n))
	require.Zero(t, n)
}
