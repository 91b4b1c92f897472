package review

import "sync"

// Visibility is the visible/hidden state of a moderator's queue view.
// Front-ends own one per session and flip it; the controller observes it.
type Visibility struct {
	mu        sync.Mutex
	visible   bool
	nextID    int
	observers map[int]func(visible bool)
}

func NewVisibility(visible bool) *Visibility {
	return &Visibility{visible: visible, observers: make(map[int]func(bool))}
}

func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Set changes the state and calls every observer in the caller's goroutine.
// Setting the current state again does nothing.
func (v *Visibility) Set(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	observers := make([]func(bool), 0, len(v.observers))
	for _, fn := range v.observers {
		observers = append(observers, fn)
	}
	v.mu.Unlock()

	for _, fn := range observers {
		fn(visible)
	}
}

// Observe registers fn for state changes and returns a function that
// detaches it.
func (v *Visibility) Observe(fn func(visible bool)) (cancel func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.observers[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.observers, id)
			v.mu.Unlock()
		})
	}
}
