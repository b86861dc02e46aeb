package chat_test

import (
	"testing"

	"github.com/fabfab/docchat/chat"
)

func TestMemoryAppendAndHistoryOrder(t *testing.T) {
	m := chat.NewMemory()
	m.Append(chat.Turn{Question: "q1", Answer: "a1"})
	m.Append(chat.Turn{Question: "q2", Answer: "a2"})

	history := m.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Question != "q1" || history[1].Question != "q2" {
		t.Fatalf("turns out of order: %+v", history)
	}
}

func TestMemoryHistoryReturnsCopy(t *testing.T) {
	m := chat.NewMemory()
	m.Append(chat.Turn{Question: "q1", Answer: "a1"})

	history := m.History()
	history[0].Answer = "mutated"

	if got := m.History()[0].Answer; got != "a1" {
		t.Fatalf("mutating the returned history leaked into memory: %q", got)
	}
}

func TestMemoryClear(t *testing.T) {
	m := chat.NewMemory()
	m.Append(chat.Turn{Question: "q1", Answer: "a1"})
	m.Clear()

	if len(m.History()) != 0 {
		t.Fatal("expected empty history after clear")
	}
	if m.Len() != 0 {
		t.Fatalf("expected zero length after clear, got %d", m.Len())
	}

	m.Append(chat.Turn{Question: "q2", Answer: "a2"})
	if m.Len() != 1 {
		t.Fatalf("expected memory to accept turns after clear, got %d", m.Len())
	}
}
