package conversation

import "sync"

// SidebarEntry is one row of the conversation listing.
type SidebarEntry struct {
	ID      string
	ModelID string
	Title   string
}

// Sidebar is the conversation listing collaborator. New conversations are
// registered here when a stream speculatively creates them, and removed
// again on rollback.
type Sidebar struct {
	mu       sync.RWMutex
	entries  []SidebarEntry
	activeID string
}

// NewSidebar creates an empty listing.
func NewSidebar() *Sidebar {
	return &Sidebar{}
}

// Add prepends an entry; the newest conversation lists first.
func (s *Sidebar) Add(entry SidebarEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]SidebarEntry{entry}, s.entries...)
}

// Remove deletes the entry with the given id.
func (s *Sidebar) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	s.entries = filtered
	if s.activeID == id {
		s.activeID = ""
	}
}

// SetActive marks the conversation currently being viewed.
func (s *Sidebar) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
}

// Active returns the active conversation id, or "".
func (s *Sidebar) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Entries returns a copy of the listing.
func (s *Sidebar) Entries() []SidebarEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SidebarEntry(nil), s.entries...)
}

// Contains reports whether an entry with the given id exists.
func (s *Sidebar) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}
