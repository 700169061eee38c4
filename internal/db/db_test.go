package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM providers WHERE category=? AND verified=? LIMIT ?`
	assert.Equal(t, q, Rebind(SQLite, q))
	assert.Equal(t, `SELECT id FROM providers WHERE category=$1 AND verified=$2 LIMIT $3`, Rebind(Postgres, q))
}

func TestDialect(t *testing.T) {
	assert.Equal(t, SQLite, Config{}.Dialect())
	assert.Equal(t, Postgres, Config{Driver: "Postgres"}.Dialect())
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"})
	assert.Error(t, err)
}
