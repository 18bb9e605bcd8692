package tablesvc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client issues requests against the table service through one Driver.
type Client struct {
	driver Driver
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient wraps an existing driver.
func NewClient(driver Driver, opts ...Option) *Client {
	c := &Client{
		driver: driver,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds a ready-to-use client from the service endpoint and access key.
//
//	memory://
//	postgres://user@host:5432/db?sslmode=disable   key = password
//	dynamodb://us-east-1?endpoint=http://localhost:8000&prefix=dev_   key = ACCESS_KEY_ID:SECRET
//	firestore://my-project?database=todos   key = service account JSON path
func New(ctx context.Context, endpoint, key string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	var d Driver
	switch u.Scheme {
	case "memory":
		d = NewMemoryDriver()
	case "postgres", "postgresql":
		d, err = OpenPostgres(ctx, u, key)
	case "dynamodb":
		d, err = OpenDynamoDB(ctx, u, key)
	case "firestore":
		d, err = OpenFirestore(ctx, u, key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(d, opts...), nil
}

// Close releases the driver.
func (c *Client) Close() error {
	return c.driver.Close()
}

// Table names the table a request targets.
type Table struct {
	c    *Client
	name string
}

// From starts a request against table.
func (c *Client) From(table string) *Table {
	return &Table{c: c, name: table}
}

type verb string

const (
	verbSelect verb = "select"
	verbInsert verb = "insert"
	verbUpdate verb = "update"
	verbDelete verb = "delete"
)

// Builder accumulates filters and ordering until a terminal call
// (Rows, Single, Exec) sends the request.
type Builder struct {
	c     *Client
	verb  verb
	q     Query
	row   Row
	patch Patch
	err   error
}

func (t *Table) builder(v verb) *Builder {
	b := &Builder{c: t.c, verb: v, q: Query{Table: t.name}}
	if strings.TrimSpace(t.name) == "" {
		b.err = fmt.Errorf("%w: empty table name", ErrBadColumn)
	}
	return b
}

// Select reads rows.
func (t *Table) Select() *Builder { return t.builder(verbSelect) }

// Insert creates one row and returns it as stored.
func (t *Table) Insert(row Row) *Builder {
	b := t.builder(verbInsert)
	b.row = row
	return b
}

// Update changes matching rows and returns them as stored.
func (t *Table) Update(p Patch) *Builder {
	b := t.builder(verbUpdate)
	b.patch = p
	if p.IsEmpty() && b.err == nil {
		b.err = ErrEmptyPatch
	}
	return b
}

// Delete removes matching rows.
func (t *Table) Delete() *Builder { return t.builder(verbDelete) }

// Eq keeps rows whose column equals v.
func (b *Builder) Eq(col string, v any) *Builder {
	if b.err != nil {
		return b
	}
	nv, err := normalize(col, v)
	if err != nil {
		b.err = err
		return b
	}
	b.q.Where = append(b.q.Where, Condition{Column: col, Value: nv})
	return b
}

// Order sorts selected rows by col.
func (b *Builder) Order(col string, dir Direction) *Builder {
	if b.err != nil {
		return b
	}
	if !validColumn(col) {
		b.err = fmt.Errorf("%w: unknown column %q", ErrBadColumn, col)
		return b
	}
	b.q.OrderBy = append(b.q.OrderBy, Order{Column: col, Direction: dir})
	return b
}

// Rows sends the request and returns the affected or selected rows.
func (b *Builder) Rows(ctx context.Context) ([]Row, error) {
	if b.err != nil {
		return nil, b.err
	}

	reqID := uuid.NewString()
	start := time.Now()
	rows, err := b.send(ctx)
	took := time.Since(start)

	if err != nil {
		b.c.logger.Warn().
			Str("event", "table_request_failed").
			Str("request_id", reqID).
			Str("table", b.q.Table).
			Str("verb", string(b.verb)).
			Dur("duration", took).
			Err(err).
			Msg("Table request failed")
		return nil, fmt.Errorf("%s %s: %w", b.verb, b.q.Table, err)
	}

	b.c.logger.Debug().
		Str("event", "table_request").
		Str("request_id", reqID).
		Str("table", b.q.Table).
		Str("verb", string(b.verb)).
		Int("rows", len(rows)).
		Dur("duration", took).
		Msg("Table request")
	return rows, nil
}

// Single is Rows for requests that expect exactly one row.
func (b *Builder) Single(ctx context.Context) (Row, error) {
	rows, err := b.Rows(ctx)
	if err != nil {
		return Row{}, err
	}
	if len(rows) == 0 {
		return Row{}, ErrNoRows
	}
	return rows[0], nil
}

// Exec is Rows for requests whose result rows are not needed.
func (b *Builder) Exec(ctx context.Context) error {
	_, err := b.Rows(ctx)
	return err
}

func (b *Builder) send(ctx context.Context) ([]Row, error) {
	d := b.c.driver
	switch b.verb {
	case verbSelect:
		return d.Select(ctx, b.q)
	case verbInsert:
		row, err := d.Insert(ctx, b.q.Table, b.row)
		if err != nil {
			return nil, err
		}
		return []Row{row}, nil
	case verbUpdate:
		if len(b.q.Where) == 0 {
			return nil, ErrUnfiltered
		}
		return d.Update(ctx, b.q, b.patch)
	case verbDelete:
		if len(b.q.Where) == 0 {
			return nil, ErrUnfiltered
		}
		return nil, d.Delete(ctx, b.q)
	}
	return nil, fmt.Errorf("unknown verb %q", b.verb)
}
