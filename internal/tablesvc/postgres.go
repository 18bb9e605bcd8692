package tablesvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PostgresDriver talks to a PostgreSQL table shaped like:
//
//	CREATE TABLE tasks (
//	    id         BIGSERIAL PRIMARY KEY,
//	    title      TEXT NOT NULL,
//	    completed  BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresDriver struct {
	db *sql.DB
}

// NewPostgresDriver uses an already opened database.
func NewPostgresDriver(db *sql.DB) *PostgresDriver {
	return &PostgresDriver{db: db}
}

// OpenPostgres connects and pings. key fills in the password when the URL
// does not carry one.
func OpenPostgres(ctx context.Context, u *url.URL, key string) (*PostgresDriver, error) {
	dsn := *u
	if _, hasPassword := dsn.User.Password(); !hasPassword && key != "" {
		dsn.User = url.UserPassword(dsn.User.Username(), key)
	}

	db, err := sql.Open("postgres", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", pgError(err))
	}
	return NewPostgresDriver(db), nil
}

var rowColumns = []string{ColID, ColTitle, ColCompleted, ColCreatedAt}

func columnList() string {
	quoted := make([]string, len(rowColumns))
	for i, c := range rowColumns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func whereClause(conds []Condition, args []any) (string, []any) {
	if len(conds) == 0 {
		return "", args
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		args = append(args, c.Value)
		parts[i] = pq.QuoteIdentifier(c.Column) + " = $" + strconv.Itoa(len(args))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func buildSelect(q Query) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + columnList() + " FROM " + pq.QuoteIdentifier(q.Table))
	where, args := whereClause(q.Where, nil)
	sb.WriteString(where)
	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			parts[i] = pq.QuoteIdentifier(o.Column) + " " + strings.ToUpper(o.Direction.String())
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	return sb.String(), args
}

func buildInsert(table string, row Row) (string, []any) {
	query := "INSERT INTO " + pq.QuoteIdentifier(table) +
		" (" + pq.QuoteIdentifier(ColTitle) + ", " + pq.QuoteIdentifier(ColCompleted) + ")" +
		" VALUES ($1, $2) RETURNING " + columnList()
	return query, []any{row.Title, row.Completed}
}

func buildUpdate(q Query, p Patch) (string, []any) {
	var sets []string
	var args []any
	if p.Title != nil {
		args = append(args, *p.Title)
		sets = append(sets, pq.QuoteIdentifier(ColTitle)+" = $"+strconv.Itoa(len(args)))
	}
	if p.Completed != nil {
		args = append(args, *p.Completed)
		sets = append(sets, pq.QuoteIdentifier(ColCompleted)+" = $"+strconv.Itoa(len(args)))
	}
	where, args := whereClause(q.Where, args)
	query := "UPDATE " + pq.QuoteIdentifier(q.Table) + " SET " + strings.Join(sets, ", ") +
		where + " RETURNING " + columnList()
	return query, args
}

func buildDelete(q Query) (string, []any) {
	where, args := whereClause(q.Where, nil)
	return "DELETE FROM " + pq.QuoteIdentifier(q.Table) + where, args
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Title, &r.Completed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError(err)
	}
	return out, nil
}

func (d *PostgresDriver) Select(ctx context.Context, q Query) ([]Row, error) {
	query, args := buildSelect(q)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgError(err)
	}
	return scanRows(rows)
}

func (d *PostgresDriver) Insert(ctx context.Context, table string, row Row) (Row, error) {
	query, args := buildInsert(table, row)
	var r Row
	err := d.db.QueryRowContext(ctx, query, args...).
		Scan(&r.ID, &r.Title, &r.Completed, &r.CreatedAt)
	if err != nil {
		return Row{}, pgError(err)
	}
	return r, nil
}

func (d *PostgresDriver) Update(ctx context.Context, q Query, p Patch) ([]Row, error) {
	query, args := buildUpdate(q, p)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgError(err)
	}
	return scanRows(rows)
}

func (d *PostgresDriver) Delete(ctx context.Context, q Query) error {
	query, args := buildDelete(q)
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return pgError(err)
	}
	return nil
}

func (d *PostgresDriver) Close() error {
	return d.db.Close()
}

// pgError adds the SQLSTATE name to server errors.
func pgError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("postgres %s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
