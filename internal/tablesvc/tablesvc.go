// Package tablesvc is a small data-access client for a hosted "tasks" table.
//
// A Client wraps one Driver and exposes generic select/insert/update/delete
// verbs against named tables, with chainable equality filters and ordering:
//
//	rows, err := client.From("tasks").Select().Order(ColCreatedAt, Descending).Rows(ctx)
//
// Drivers:
//   - MemoryDriver: in-process table, for tests and demos
//   - PostgresDriver: PostgreSQL through lib/pq
//   - DynamoDBDriver: AWS DynamoDB
//   - FirestoreDriver: Cloud Firestore
//
// New picks the driver from the endpoint URL scheme.
package tablesvc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Column names of the tasks table.
const (
	ColID        = "id"
	ColTitle     = "title"
	ColCompleted = "completed"
	ColCreatedAt = "created_at"
)

// DefaultTable is the table the todo app reads and writes.
const DefaultTable = "tasks"

var (
	ErrMissingEndpoint   = errors.New("tablesvc: endpoint is required")
	ErrUnsupportedScheme = errors.New("tablesvc: unsupported endpoint scheme")
	ErrBadColumn         = errors.New("tablesvc: bad column")
	ErrNoRows            = errors.New("tablesvc: no rows")
	ErrEmptyPatch        = errors.New("tablesvc: empty patch")
	ErrUnfiltered        = errors.New("tablesvc: update and delete need at least one filter")
)

// Row is one record of the tasks table. ID and CreatedAt are assigned by the
// service on insert.
type Row struct {
	ID        int64     `json:"id" dynamodbav:"id" firestore:"id"`
	Title     string    `json:"title" dynamodbav:"title" firestore:"title"`
	Completed bool      `json:"completed" dynamodbav:"completed" firestore:"completed"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at" firestore:"created_at"`
}

// Value returns the column value of r, or nil for an unknown column.
func (r Row) Value(col string) any {
	switch col {
	case ColID:
		return r.ID
	case ColTitle:
		return r.Title
	case ColCompleted:
		return r.Completed
	case ColCreatedAt:
		return r.CreatedAt
	}
	return nil
}

// Condition is an equality filter.
type Condition struct {
	Column string
	Value  any
}

// Direction of an Order clause.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Order sorts results by one column.
type Order struct {
	Column    string
	Direction Direction
}

// Query selects rows of one table.
type Query struct {
	Table   string
	Where   []Condition
	OrderBy []Order
}

// Match reports whether r satisfies every condition.
func (q Query) Match(r Row) bool {
	for _, c := range q.Where {
		if !equal(r.Value(c.Column), c.Value) {
			return false
		}
	}
	return true
}

// IDOnly returns the id when the query filters on id and nothing else.
func (q Query) IDOnly() (int64, bool) {
	if len(q.Where) != 1 || q.Where[0].Column != ColID {
		return 0, false
	}
	id, ok := q.Where[0].Value.(int64)
	return id, ok
}

// Patch lists the columns an update changes. Nil fields are left alone.
type Patch struct {
	Title     *string
	Completed *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil
}

// Apply writes the patch onto r.
func (p Patch) Apply(r *Row) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
}

// Driver is the transport behind a Client. Queries reaching a driver have
// already been validated.
type Driver interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, q Query, p Patch) ([]Row, error)
	Delete(ctx context.Context, q Query) error
	Close() error
}

// normalize checks col and coerces v to the column's Go type.
func normalize(col string, v any) (any, error) {
	switch col {
	case ColID:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case ColTitle:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ColCompleted:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ColCreatedAt:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown column %q", ErrBadColumn, col)
	}
	return nil, fmt.Errorf("%w: %s cannot hold %T", ErrBadColumn, col, v)
}

func validColumn(col string) bool {
	switch col {
	case ColID, ColTitle, ColCompleted, ColCreatedAt:
		return true
	}
	return false
}

func equal(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

func less(a, b any) bool {
	switch x := a.(type) {
	case int64:
		return x < b.(int64)
	case string:
		return x < b.(string)
	case bool:
		return !x && b.(bool)
	case time.Time:
		return x.Before(b.(time.Time))
	}
	return false
}

// sortRows orders rows in place. Ties keep their incoming order.
func sortRows(rows []Row, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			a, b := rows[i].Value(o.Column), rows[j].Value(o.Column)
			if equal(a, b) {
				continue
			}
			if o.Direction == Descending {
				return less(b, a)
			}
			return less(a, b)
		}
		return false
	})
}
