package todo

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/model"
	"github.com/Makepad-fr/tada-sync/internal/tablesvc"
)

// RemoteStore caches the rows of a hosted table. The cache changes only
// after the service confirms a request; failures leave it untouched.
//
// Requests run without holding the cache lock, so concurrent operations
// apply in the order their requests resolve. Only add is guarded against
// duplicate submission.
type RemoteStore struct {
	client *tablesvc.Client
	table  string
	logger zerolog.Logger

	mu      sync.Mutex
	todos   []model.Todo
	loading bool
}

// NewRemote creates a store with an empty cache. Call Load to fill it.
func NewRemote(client *tablesvc.Client, opts ...Option) *RemoteStore {
	o := newOptions(opts)
	return &RemoteStore{
		client: client,
		table:  o.table,
		logger: o.logger.With().Str("store", "remote").Str("table", o.table).Logger(),
		todos:  []model.Todo{},
	}
}

func fromRow(r tablesvc.Row) model.Todo {
	t := model.Todo{ID: r.ID, Text: r.Title, Done: r.Completed}
	if !r.CreatedAt.IsZero() {
		ts := r.CreatedAt
		t.CreatedAt = &ts
	}
	return t
}

// Load replaces the cache with every row, newest first, in the order the
// service returns them. On failure the cache is left as it was.
func (s *RemoteStore) Load(ctx context.Context) error {
	rows, err := s.client.From(s.table).Select().
		Order(tablesvc.ColCreatedAt, tablesvc.Descending).
		Rows(ctx)
	if err != nil {
		LogRequestFailed(s.logger, "load", err)
		return err
	}

	todos := make([]model.Todo, len(rows))
	for i, r := range rows {
		todos[i] = fromRow(r)
	}

	s.mu.Lock()
	s.todos = todos
	s.mu.Unlock()

	LogTodosLoaded(s.logger, len(todos))
	return nil
}

// Todos returns a copy of the cache.
func (s *RemoteStore) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Clone(s.todos)
}

// View filters the cache. It does not consult the service.
func (s *RemoteStore) View(f model.Filter) []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.View(s.todos, f)
}

// Loading reports whether an add is in flight.
func (s *RemoteStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Add inserts a row and prepends the stored row to the cache.
func (s *RemoteStore) Add(ctx context.Context, title string) (model.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Todo{}, ErrEmptyText
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return model.Todo{}, ErrAddInFlight
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	row, err := s.client.From(s.table).Insert(tablesvc.Row{Title: title}).Single(ctx)
	if err != nil {
		LogRequestFailed(s.logger, "add", err)
		return model.Todo{}, err
	}

	t := fromRow(row)
	s.mu.Lock()
	s.todos = append([]model.Todo{t}, s.todos...)
	s.mu.Unlock()

	LogTodoAdded(s.logger, t.ID)
	return t, nil
}

// ToggleComplete asks the service to flip the flag of todo and replaces the
// cached entry with the returned row.
func (s *RemoteStore) ToggleComplete(ctx context.Context, todo model.Todo) error {
	completed := !todo.Done
	row, err := s.client.From(s.table).
		Update(tablesvc.Patch{Completed: &completed}).
		Eq(tablesvc.ColID, todo.ID).
		Single(ctx)
	if err != nil {
		LogRequestFailed(s.logger, "toggle", err)
		return err
	}

	s.mu.Lock()
	if i, ok := model.Find(s.todos, row.ID); ok {
		s.todos[i] = fromRow(row)
	}
	s.mu.Unlock()

	LogTodoToggled(s.logger, row.ID, row.Completed)
	return nil
}

// Toggle looks id up in the cache and calls ToggleComplete. Unknown ids are
// ignored.
func (s *RemoteStore) Toggle(ctx context.Context, id int64) error {
	s.mu.Lock()
	i, ok := model.Find(s.todos, id)
	var t model.Todo
	if ok {
		t = s.todos[i]
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.ToggleComplete(ctx, t)
}

// Delete removes the row and then drops it from the cache.
func (s *RemoteStore) Delete(ctx context.Context, id int64) error {
	err := s.client.From(s.table).Delete().Eq(tablesvc.ColID, id).Exec(ctx)
	if err != nil {
		LogRequestFailed(s.logger, "delete", err)
		return err
	}

	s.mu.Lock()
	if i, ok := model.Find(s.todos, id); ok {
		s.todos = append(s.todos[:i], s.todos[i+1:]...)
	}
	s.mu.Unlock()

	LogTodoDeleted(s.logger, id)
	return nil
}

// Close releases the table client.
func (s *RemoteStore) Close() error {
	return s.client.Close()
}
