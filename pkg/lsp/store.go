package lsp

import "github.com/sasha-s/go-deadlock"

// Store holds the text of open documents by URI. Handlers may run
// concurrently, so access is locked; lock misuse is reported by go-deadlock.
type Store struct {
	mu   deadlock.RWMutex
	docs map[string]string
}

func NewStore() *Store {
	return &Store{docs: map[string]string{}}
}

func (s *Store) Set(uri, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = text
}

func (s *Store) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.docs[uri]
	return t, ok
}

func (s *Store) Delete(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
