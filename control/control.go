// Package control maps window input to graph state.
//
// OutputSwitch presents an alternate image while a key is held, the way a
// debug view of an intermediate pass is usually inspected. Its KeyPress
// and KeyRelease methods have the signatures of gpucontext event source
// callbacks, so a host window can register them directly.
package control

import (
	"sync"

	"github.com/gogpu/gpucontext"
)

// OutputSelector is the part of a graph an OutputSwitch drives.
type OutputSelector interface {
	OutputTag() string
	SetOutputTag(tag string) error
}

// OutputSwitch selects Held while Key is pressed and Normal otherwise.
// Key events may arrive on any goroutine; Apply is called by the render
// loop before each frame.
type OutputSwitch struct {
	Key    gpucontext.Key
	Normal string
	Held   string

	mu   sync.Mutex
	down bool
}

// NewOutputSwitch creates a switch between normal and held on key.
func NewOutputSwitch(key gpucontext.Key, normal, held string) *OutputSwitch {
	return &OutputSwitch{Key: key, Normal: normal, Held: held}
}

// KeyPress records a press of the switch key.
func (s *OutputSwitch) KeyPress(key gpucontext.Key, _ gpucontext.Modifiers) {
	if key != s.Key {
		return
	}
	s.mu.Lock()
	s.down = true
	s.mu.Unlock()
}

// KeyRelease records a release of the switch key.
func (s *OutputSwitch) KeyRelease(key gpucontext.Key, _ gpucontext.Modifiers) {
	if key != s.Key {
		return
	}
	s.mu.Lock()
	s.down = false
	s.mu.Unlock()
}

// Down reports whether the switch key is down.
func (s *OutputSwitch) Down() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

// Tag returns the tag that should be presented now.
func (s *OutputSwitch) Tag() string {
	if s.Down() {
		return s.Held
	}
	return s.Normal
}

// Apply sets the output tag of g if it differs from Tag. It reports
// whether the tag changed.
func (s *OutputSwitch) Apply(g OutputSelector) (bool, error) {
	tag := s.Tag()
	if g.OutputTag() == tag {
		return false, nil
	}
	if err := g.SetOutputTag(tag); err != nil {
		return false, err
	}
	return true, nil
}
