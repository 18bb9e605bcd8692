package tablesvc

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	q := Query{
		Table:   "tasks",
		Where:   []Condition{{Column: ColCompleted, Value: false}},
		OrderBy: []Order{{Column: ColCreatedAt, Direction: Descending}},
	}

	query, args := buildSelect(q)
	assert.Equal(t,
		`SELECT "id", "title", "completed", "created_at" FROM "tasks" WHERE "completed" = $1 ORDER BY "created_at" DESC`,
		query)
	assert.Equal(t, []any{false}, args)
}

func TestBuildSelect_NoClauses(t *testing.T) {
	query, args := buildSelect(Query{Table: "tasks"})
	assert.Equal(t, `SELECT "id", "title", "completed", "created_at" FROM "tasks"`, query)
	assert.Empty(t, args)
}

func TestBuildInsert(t *testing.T) {
	query, args := buildInsert("tasks", Row{Title: "Buy milk"})
	assert.Equal(t,
		`INSERT INTO "tasks" ("title", "completed") VALUES ($1, $2) RETURNING "id", "title", "completed", "created_at"`,
		query)
	assert.Equal(t, []any{"Buy milk", false}, args)
}

func TestBuildUpdate(t *testing.T) {
	done := true
	title := "renamed"
	q := Query{Table: "tasks", Where: []Condition{{Column: ColID, Value: int64(7)}}}

	query, args := buildUpdate(q, Patch{Title: &title, Completed: &done})
	assert.Equal(t,
		`UPDATE "tasks" SET "title" = $1, "completed" = $2 WHERE "id" = $3 RETURNING "id", "title", "completed", "created_at"`,
		query)
	assert.Equal(t, []any{"renamed", true, int64(7)}, args)
}

func TestBuildDelete(t *testing.T) {
	q := Query{Table: "tasks", Where: []Condition{{Column: ColID, Value: int64(3)}}}

	query, args := buildDelete(q)
	assert.Equal(t, `DELETE FROM "tasks" WHERE "id" = $1`, query)
	assert.Equal(t, []any{int64(3)}, args)
}

func TestBuildSelect_QuotesTableName(t *testing.T) {
	query, _ := buildSelect(Query{Table: `odd"name`})
	assert.Contains(t, query, `FROM "odd""name"`)
}

func TestPgError_AddsCodeName(t *testing.T) {
	err := pgError(&pq.Error{Code: "42P01", Message: `relation "tasks" does not exist`})
	assert.Contains(t, err.Error(), "undefined_table")

	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}

// Runs against a real database when TODO_TEST_POSTGRES_URL is set.
func TestPostgresDriver_Integration(t *testing.T) {
	dsn := os.Getenv("TODO_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TODO_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tasks_it (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `TRUNCATE tasks_it`)
	require.NoError(t, err)

	c := NewClient(NewPostgresDriver(db))
	defer c.Close()

	a, err := c.From("tasks_it").Insert(Row{Title: "a"}).Single(ctx)
	require.NoError(t, err)
	_, err = c.From("tasks_it").Insert(Row{Title: "b"}).Single(ctx)
	require.NoError(t, err)

	rows, err := c.From("tasks_it").Select().Order(ColCreatedAt, Descending).Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Title)

	done := true
	updated, err := c.From("tasks_it").Update(Patch{Completed: &done}).Eq(ColID, a.ID).Single(ctx)
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	require.NoError(t, c.From("tasks_it").Delete().Eq(ColID, a.ID).Exec(ctx))
	rows, err = c.From("tasks_it").Select().Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
