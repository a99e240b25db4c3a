package portal

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the agent-side state of one popup session: which fees have
// already been opted out, so a repeated request does not click twice. A fee
// is identified by its name and row, since the same name can appear on
// several rows.
type Session struct {
	ID        string
	mu        sync.Mutex
	completed map[Fee]struct{}
	lastSeen  time.Time
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		completed: make(map[Fee]struct{}),
		lastSeen:  time.Now(),
	}
}

func (s *Session) MarkCompleted(fee Fee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[fee] = struct{}{}
}

func (s *Session) IsCompleted(fee Fee) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[fee]
	return ok
}

// Completed lists the finished fees in table order.
func (s *Session) Completed() []Fee {
	s.mu.Lock()
	defer s.mu.Unlock()
	fees := make([]Fee, 0, len(s.completed))
	for fee := range s.completed {
		fees = append(fees, fee)
	}
	sort.Slice(fees, func(i, j int) bool {
		if fees[i].RowIndex != fees[j].RowIndex {
			return fees[i].RowIndex < fees[j].RowIndex
		}
		return fees[i].Name < fees[j].Name
	})
	return fees
}

// Touch records that the session was just used.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
