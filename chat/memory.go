package chat

import "sync"

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// Memory is the append-only log of prior turns for a single logical
// conversation. Turns are never reordered or edited; Clear is the only
// way to remove them. The mutex guards the slice itself, but callers
// still own serializing Ask calls that read and then extend it.
type Memory struct {
	mu    sync.Mutex
	turns []Turn
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// History returns a copy of all turns in arrival order.
func (m *Memory) History() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
