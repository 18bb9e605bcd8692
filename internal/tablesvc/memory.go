package tablesvc

import (
	"context"
	"sync"
	"time"
)

// MemoryDriver keeps tables in process memory. Ids are sequential per table
// and creation times strictly increase, so newest-first ordering is stable
// even for rows inserted within the same clock tick.
type MemoryDriver struct {
	mu     sync.Mutex
	tables map[string][]Row
	seq    map[string]int64
	last   time.Time
	now    func() time.Time
}

// NewMemoryDriver creates an empty in-memory service.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		tables: make(map[string][]Row),
		seq:    make(map[string]int64),
		now:    time.Now,
	}
}

func (d *MemoryDriver) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Row
	for _, r := range d.tables[q.Table] {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	sortRows(out, q.OrderBy)
	return out, nil
}

func (d *MemoryDriver) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq[table]++
	ts := d.now().UTC()
	if !ts.After(d.last) {
		ts = d.last.Add(time.Microsecond)
	}
	d.last = ts

	row.ID = d.seq[table]
	row.CreatedAt = ts
	d.tables[table] = append(d.tables[table], row)
	return row, nil
}

func (d *MemoryDriver) Update(ctx context.Context, q Query, p Patch) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Row
	rows := d.tables[q.Table]
	for i := range rows {
		if q.Match(rows[i]) {
			p.Apply(&rows[i])
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (d *MemoryDriver) Delete(ctx context.Context, q Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := d.tables[q.Table]
	kept := rows[:0]
	for _, r := range rows {
		if !q.Match(r) {
			kept = append(kept, r)
		}
	}
	d.tables[q.Table] = kept
	return nil
}

func (d *MemoryDriver) Close() error { return nil }
