// Package todo holds the todo-list state and its persistence.
//
// Two interchangeable stores share the Backend surface:
//   - LocalStore keeps the list in memory and mirrors every change to a
//     key-value storage as a full JSON snapshot.
//   - RemoteStore caches the rows of a hosted table and applies a change
//     locally only after the service confirmed it.
//
// Every mutating operation returns an error; stores never decide how a
// failure is shown.
package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Makepad-fr/tada-sync/internal/model"
)

// Backend is what the presentation layer drives.
type Backend interface {
	Todos() []model.Todo
	View(f model.Filter) []model.Todo
	Add(ctx context.Context, text string) (model.Todo, error)
	Toggle(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// Editor is implemented by backends that support editing text in place.
type Editor interface {
	Edit(ctx context.Context, id int64, text string) error
	BeginEdit(id int64) bool
	CancelEdit()
	Editing() (int64, bool)
}

// Loader is implemented by backends that fetch their state on activation.
type Loader interface {
	Load(ctx context.Context) error
}

// Busy reports whether an add request is in flight.
type Busy interface {
	Loading() bool
}

var (
	_ Backend = (*LocalStore)(nil)
	_ Editor  = (*LocalStore)(nil)
	_ Backend = (*RemoteStore)(nil)
	_ Loader  = (*RemoteStore)(nil)
	_ Busy    = (*RemoteStore)(nil)
)

var (
	// ErrEmptyText rejects input that is empty after trimming. Nothing is
	// stored; callers usually ignore it.
	ErrEmptyText = errors.New("empty text")
	// ErrAddInFlight rejects an add while a previous one is unresolved.
	ErrAddInFlight = errors.New("add already in progress")
	// ErrCorruptData marks stored data that could not be decoded.
	ErrCorruptData = errors.New("corrupt stored data")
)

// ParseError reports a stored list that is not valid JSON.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrCorruptData, e.Err}
}
