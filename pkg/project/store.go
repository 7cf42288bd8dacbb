package project

import (
	"sync"
)

// Store is the process-wide registry mapping a user ID to their Project.
// Concurrency discipline: every read or mutation of a Project happens inside
// WithProject, which holds that user's own mutex for the duration of the
// turn. Two messages from the same user therefore serialize; different users
// proceed independently.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

type entry struct {
	mu      sync.Mutex
	project *Project
}

// NewStore creates an empty project store.
func NewStore() *Store {
	return &Store{
		entries: make(map[int64]*entry),
	}
}

func (s *Store) getOrCreate(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		e = &entry{project: NewProject(userID)}
		s.entries[userID] = e
	}
	return e
}

// WithProject runs fn with exclusive access to the user's project, creating
// it on first contact. The project pointer must not escape fn.
func (s *Store) WithProject(userID int64, fn func(p *Project) error) error {
	e := s.getOrCreate(userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.project)
}

// Reset replaces the user's project wholesale with a fresh one.
func (s *Store) Reset(userID int64) {
	e := s.getOrCreate(userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.project = NewProject(userID)
}

// Exists reports whether a project has been created for the user.
func (s *Store) Exists(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID]
	return ok
}

// Count returns the number of tracked projects.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
