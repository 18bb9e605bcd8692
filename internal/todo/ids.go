package todo

import (
	"sync"
	"time"
)

// IDSource hands out millisecond-shaped ids that never repeat, even when
// several are requested within the same clock tick.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDSource starts above floor, usually the largest id already in use.
func NewIDSource(now func() time.Time, floor int64) *IDSource {
	return &IDSource{last: floor, now: now}
}

// Next returns max(last+1, now in ms).
func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}
