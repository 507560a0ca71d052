// Package combatfakes provides scripted dice and in-memory peer services for
// combat tests.
package combatfakes

import (
	"sync"

	"github.com/louisbranch/fulcrum/internal/core/dice"
)

// ScriptedSource replays zero-based Intn results, then returns zero.
// It is safe for concurrent use.
type ScriptedSource struct {
	mu     sync.Mutex
	values []int
	used   int
}

var _ dice.Source = (*ScriptedSource)(nil)

// NewScriptedSource builds a source that replays values in order.
func NewScriptedSource(values ...int) *ScriptedSource {
	return &ScriptedSource{values: values}
}

// Push appends more values to replay.
func (s *ScriptedSource) Push(values ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, values...)
}

// Intn returns the next scripted value modulo n.
func (s *ScriptedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used++
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[0]
	s.values = s.values[1:]
	if n <= 0 {
		return 0
	}
	return ((v % n) + n) % n
}

// Used reports how many values have been drawn.
func (s *ScriptedSource) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Remaining reports how many scripted values are left.
func (s *ScriptedSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// D20 converts d20 faces into the Intn values that produce them.
func D20(faces ...int) []int {
	return Faces(faces...)
}

// Faces converts die faces (1-based) into Intn values.
func Faces(faces ...int) []int {
	out := make([]int, len(faces))
	for i, f := range faces {
		out[i] = f - 1
	}
	return out
}
