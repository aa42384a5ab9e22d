package service

import (
	"sync"
)

// RecentSet tracks the most recently added strings, up to a fixed
// capacity. NSQ does not dedupe messages, so workers use this to
// remember which job IDs they are already processing. Once the set
// is full, each new item evicts the oldest one. Safe for concurrent
// use.
type RecentSet struct {
	capacity int
	order    []string
	present  map[string]struct{}
	mutex    sync.Mutex
}

// NewRecentSet creates a new RecentSet with the specified capacity.
func NewRecentSet(capacity int) *RecentSet {
	return &RecentSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		present:  make(map[string]struct{}, capacity),
	}
}

// Add puts an item in the set, evicting the oldest entry if the set
// is at capacity. Adding an item that is already present is a no-op.
func (s *RecentSet) Add(item string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.present[item]; ok {
		return
	}
	if len(s.order) == s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.present, oldest)
	}
	s.order = append(s.order, item)
	s.present[item] = struct{}{}
}

// Contains returns true if the item is in the set.
func (s *RecentSet) Contains(item string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.present[item]
	return ok
}

// Del removes the item from the set, if present.
func (s *RecentSet) Del(item string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.present[item]; !ok {
		return
	}
	delete(s.present, item)
	for i, value := range s.order {
		if value == item {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Items returns the items currently in the set, oldest first.
func (s *RecentSet) Items() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	items := make([]string, len(s.order))
	copy(items, s.order)
	return items
}
