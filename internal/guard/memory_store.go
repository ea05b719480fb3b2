package guard

import (
	"sync"
	"time"
)

// MemoryUsageStore keeps usage counters in process memory. Counters do
// not survive a restart or coordinate across instances; production
// deployments use the persistent store and this one backs tests and
// single-instance setups.
type MemoryUsageStore struct {
	mu      sync.Mutex
	day     string
	entries map[string]*Usage // keyed by userID, current day only
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{entries: make(map[string]*Usage)}
}

// rollLocked discards every counter when the day changes. Caller must
// hold s.mu.
func (s *MemoryUsageStore) rollLocked(day string) {
	if s.day != day {
		s.day = day
		s.entries = make(map[string]*Usage)
	}
}

func (s *MemoryUsageStore) Usage(userID, day string) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(day)
	if usage, ok := s.entries[userID]; ok {
		return *usage, nil
	}
	return Usage{}, nil
}

func (s *MemoryUsageStore) Record(userID, day string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordLocked(userID, day, now)
	return nil
}

// Reserve performs the check and the increment under one lock hold
func (s *MemoryUsageStore) Reserve(userID, day string, apiCallLimit int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(day)
	if usage, ok := s.entries[userID]; ok && usage.APICalls >= apiCallLimit {
		return false, nil
	}
	s.recordLocked(userID, day, now)
	return true, nil
}

func (s *MemoryUsageStore) Release(userID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollLocked(day)
	if usage, ok := s.entries[userID]; ok {
		if usage.APICalls > 0 {
			usage.APICalls--
		}
		if usage.Executions > 0 {
			usage.Executions--
		}
	}
	return nil
}

// recordLocked increments both counters. Caller must hold s.mu.
func (s *MemoryUsageStore) recordLocked(userID, day string, now time.Time) {
	s.rollLocked(day)
	usage, ok := s.entries[userID]
	if !ok {
		usage = &Usage{}
		s.entries[userID] = usage
	}
	usage.Executions++
	usage.APICalls++
	usage.LastExecution = now
}
