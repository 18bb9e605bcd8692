package todo

import "github.com/rs/zerolog"

const (
	EventTodosLoaded      = "todos_loaded"
	EventTodoAdded        = "todo_added"
	EventTodoToggled      = "todo_toggled"
	EventTodoEdited       = "todo_edited"
	EventTodoDeleted      = "todo_deleted"
	EventPersistenceError = "persistence_error"
	EventRequestFailed    = "request_failed"
)

// LogTodosLoaded logs the initial state of a store.
func LogTodosLoaded(logger zerolog.Logger, count int) {
	logger.Info().
		Str("event", EventTodosLoaded).
		Int("count", count).
		Msg("Todos loaded")
}

// LogTodoAdded logs a created entry.
func LogTodoAdded(logger zerolog.Logger, id int64) {
	logger.Info().
		Str("event", EventTodoAdded).
		Int64("todo_id", id).
		Msg("Todo added")
}

// LogTodoToggled logs a flipped completion flag.
func LogTodoToggled(logger zerolog.Logger, id int64, done bool) {
	logger.Info().
		Str("event", EventTodoToggled).
		Int64("todo_id", id).
		Bool("done", done).
		Msg("Todo toggled")
}

// LogTodoEdited logs replaced text.
func LogTodoEdited(logger zerolog.Logger, id int64) {
	logger.Info().
		Str("event", EventTodoEdited).
		Int64("todo_id", id).
		Msg("Todo edited")
}

// LogTodoDeleted logs a removed entry.
func LogTodoDeleted(logger zerolog.Logger, id int64) {
	logger.Info().
		Str("event", EventTodoDeleted).
		Int64("todo_id", id).
		Msg("Todo deleted")
}

// LogPersistenceError logs a failed local read or write.
func LogPersistenceError(logger zerolog.Logger, operation string, err error) {
	logger.Error().
		Str("event", EventPersistenceError).
		Str("operation", operation).
		Err(err).
		Msg("Persistence error")
}

// LogRequestFailed logs a failed call to the table service.
func LogRequestFailed(logger zerolog.Logger, operation string, err error) {
	logger.Warn().
		Str("event", EventRequestFailed).
		Str("operation", operation).
		Err(err).
		Msg("Request failed")
}
