package model

import "time"

// Todo is the domain model for a todo entry.
// The local store persists it as {"id","text","done"}; remote rows also
// carry the server-assigned creation time.
type Todo struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Done      bool       `json:"done"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Find returns the position of the todo with the given id.
func Find(todos []Todo, id int64) (int, bool) {
	for i, t := range todos {
		if t.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Stats counts done and pending entries for list headers.
func Stats(todos []Todo) (done, pending int) {
	for _, t := range todos {
		if t.Done {
			done++
		} else {
			pending++
		}
	}
	return
}

// Clone returns a copy that shares nothing with todos.
func Clone(todos []Todo) []Todo {
	out := make([]Todo, len(todos))
	copy(out, todos)
	for i := range out {
		if out[i].CreatedAt != nil {
			ts := *out[i].CreatedAt
			out[i].CreatedAt = &ts
		}
	}
	return out
}
