package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Makepad-fr/tada-sync/internal/model"
)

// StorageKey is where LocalStore keeps its snapshot.
const StorageKey = "todos"

// KV is durable key-value storage. Get reports a missing key with ok == false.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// LocalStore keeps the list in memory and writes the whole list to KV after
// every change. Persistence cost is linear in the list size.
type LocalStore struct {
	mu        sync.Mutex
	kv        KV
	todos     []model.Todo
	ids       *IDSource
	editingID int64
	editing   bool
	logger    zerolog.Logger
}

// OpenLocal reads the saved list, if any.
//
// When the saved value cannot be decoded the store starts empty and a
// *ParseError is returned together with the usable store. The bad value
// stays in storage until the next successful write replaces it.
func OpenLocal(kv KV, opts ...Option) (*LocalStore, error) {
	o := newOptions(opts)
	s := &LocalStore{
		kv:     kv,
		todos:  []model.Todo{},
		logger: o.logger.With().Str("store", "local").Logger(),
	}

	b, ok, err := kv.Get(StorageKey)
	if err != nil {
		LogPersistenceError(s.logger, "load", err)
		return nil, fmt.Errorf("load todos: %w", err)
	}

	var loadErr error
	if ok {
		var saved []model.Todo
		if err := json.Unmarshal(b, &saved); err != nil {
			loadErr = &ParseError{Key: StorageKey, Err: err}
			LogPersistenceError(s.logger, "load", loadErr)
		} else if saved != nil {
			s.todos = saved
		}
	}

	var floor int64
	for _, t := range s.todos {
		floor = max(floor, t.ID)
	}
	s.ids = NewIDSource(o.now, floor)

	LogTodosLoaded(s.logger, len(s.todos))
	return s, loadErr
}

// persist writes next and adopts it only when the write succeeded, so memory
// never runs ahead of storage. Callers hold mu.
func (s *LocalStore) persist(op string, next []model.Todo) error {
	b, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := s.kv.Set(StorageKey, b); err != nil {
		LogPersistenceError(s.logger, op, err)
		return fmt.Errorf("save todos: %w", err)
	}
	s.todos = next
	return nil
}

// Todos returns a copy of the whole list in insertion order.
func (s *LocalStore) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Clone(s.todos)
}

// View returns the entries matching f.
func (s *LocalStore) View(f model.Filter) []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.View(s.todos, f)
}

// Add appends a new entry with the trimmed text.
func (s *LocalStore) Add(ctx context.Context, text string) (model.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Todo{}, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return model.Todo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.Todo{ID: s.ids.Next(), Text: text}
	next := append(model.Clone(s.todos), t)
	if err := s.persist("add", next); err != nil {
		return model.Todo{}, err
	}
	LogTodoAdded(s.logger, t.ID)
	return t, nil
}

// ToggleDone flips the done flag of id. Unknown ids are ignored.
func (s *LocalStore) ToggleDone(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := model.Find(s.todos, id)
	if !ok {
		return nil
	}
	next := model.Clone(s.todos)
	next[i].Done = !next[i].Done
	if err := s.persist("toggle", next); err != nil {
		return err
	}
	LogTodoToggled(s.logger, id, next[i].Done)
	return nil
}

// Toggle is ToggleDone.
func (s *LocalStore) Toggle(ctx context.Context, id int64) error {
	return s.ToggleDone(ctx, id)
}

// Edit replaces the text of id exactly as given, without trimming, and
// leaves editing mode.
func (s *LocalStore) Edit(ctx context.Context, id int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.editing = false
	s.editingID = 0

	i, ok := model.Find(s.todos, id)
	if !ok {
		return nil
	}
	next := model.Clone(s.todos)
	next[i].Text = text
	if err := s.persist("edit", next); err != nil {
		return err
	}
	LogTodoEdited(s.logger, id)
	return nil
}

// BeginEdit marks id as being edited. It reports false for unknown ids.
func (s *LocalStore) BeginEdit(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := model.Find(s.todos, id); !ok {
		return false
	}
	s.editingID, s.editing = id, true
	return true
}

// CancelEdit leaves editing mode without changing anything.
func (s *LocalStore) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editingID, s.editing = 0, false
}

// Editing returns the id currently being edited.
func (s *LocalStore) Editing() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingID, s.editing
}

// Delete removes id. Unknown ids are ignored.
func (s *LocalStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := model.Find(s.todos, id)
	if !ok {
		return nil
	}
	next := model.Clone(s.todos)
	next = append(next[:i], next[i+1:]...)
	if err := s.persist("delete", next); err != nil {
		return err
	}
	if s.editing && s.editingID == id {
		s.editingID, s.editing = 0, false
	}
	LogTodoDeleted(s.logger, id)
	return nil
}
