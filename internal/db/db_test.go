package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"users", "oauth_accounts", "content_sources", "ideas", "posts", "schedules"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Equal(t, 4, strings.Count(schemaSQL, "ON DELETE CASCADE")-strings.Count(schemaSQL, "REFERENCES users(id) ON DELETE CASCADE"),
		"content rows cascade from their parents")
}

func TestWhereBuilder(t *testing.T) {
	w := &whereBuilder{args: []any{"user"}}
	w.add("platform = $%d", "x")
	w.add("status = $%d", "scheduled")

	assert.Equal(t, " AND platform = $2 AND status = $3", w.clauses)
	assert.Equal(t, "$4", w.next(20))
	assert.Len(t, w.args, 4)
}

func TestPgErrorClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", unique)))
	assert.False(t, isUniqueViolation(fk))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(fmt.Errorf("plain")))
}
