package review

import "sync"

// Selection is the ordered set of selected item ids for the active category.
type Selection struct {
	mu       sync.Mutex
	ids      []int64
	onChange func()
}

// NewSelection creates an empty selection. onChange, when non-nil, is called
// after every mutation so a front-end can redraw its selection widget.
func NewSelection(onChange func()) *Selection {
	return &Selection{onChange: onChange}
}

// Set replaces the selection. Duplicate ids are dropped, order is kept.
func (s *Selection) Set(ids []int64) {
	s.mu.Lock()
	s.ids = dedupe(ids)
	s.mu.Unlock()
	s.changed()
}

// Toggle adds id if absent and removes it otherwise. It reports whether id
// is selected afterwards.
func (s *Selection) Toggle(id int64) bool {
	s.mu.Lock()
	selected := true
	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			selected = false
			break
		}
	}
	if selected {
		s.ids = append(s.ids, id)
	}
	s.mu.Unlock()
	s.changed()
	return selected
}

// Clear empties the selection. Clearing an empty selection is a no-op
// apart from the change notification.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.ids = nil
	s.mu.Unlock()
	s.changed()
}

// IDs returns a copy of the selected ids.
func (s *Selection) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.ids...)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Selection) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
