package chat_test

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/docchat/chat"
	"github.com/fabfab/docchat/document"
	"github.com/fabfab/docchat/index"
	"github.com/fabfab/docchat/llm"
)

type stubRetriever struct {
	results []index.ScoredChunk
	err     error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string) ([]index.ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var _ chat.Retriever = (*stubRetriever)(nil)

// stubLLM records every prompt it is asked to complete.
type stubLLM struct {
	answer string
	err    error
	calls  [][]llm.Message
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func scored(text, source string, score float64) index.ScoredChunk {
	return index.ScoredChunk{
		Chunk: document.Chunk{
			Text:     text,
			Metadata: document.Metadata{Source: source, Page: 1},
		},
		Score: score,
	}
}

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestAskReturnsAnswerWithDedupedSources(t *testing.T) {
	retriever := &stubRetriever{results: []index.ScoredChunk{
		scored("chunk one", "a.pdf", 0.9),
		scored("chunk two", "a.pdf", 0.8),
		scored("chunk three", "b.pdf", 0.7),
	}}
	engine := chat.NewEngine(retriever, chat.NewMemory(), &stubLLM{answer: "Here is the answer."}, discard())

	record, err := engine.Ask(context.Background(), "what do the documents say?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Answer != "Here is the answer." {
		t.Fatalf("unexpected answer: %q", record.Answer)
	}
	if len(record.Sources) != 2 || record.Sources[0] != "a.pdf" || record.Sources[1] != "b.pdf" {
		t.Fatalf("expected deduped sources [a.pdf b.pdf], got %v", record.Sources)
	}
}

func TestAskAppendsTurnAfterSuccess(t *testing.T) {
	memory := chat.NewMemory()
	engine := chat.NewEngine(&stubRetriever{}, memory, &stubLLM{answer: "fine"}, discard())

	if _, err := engine.Ask(context.Background(), "first question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := memory.History()
	if len(history) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(history))
	}
	if history[0].Question != "first question" || history[0].Answer != "fine" {
		t.Fatalf("unexpected turn recorded: %+v", history[0])
	}
}

func TestAskLeavesMemoryUntouchedOnLLMFailure(t *testing.T) {
	memory := chat.NewMemory()
	memory.Append(chat.Turn{Question: "earlier", Answer: "turn"})
	engine := chat.NewEngine(&stubRetriever{}, memory, &stubLLM{err: errors.New("backend down")}, discard())

	if _, err := engine.Ask(context.Background(), "does this corrupt memory?"); err == nil {
		t.Fatal("expected error from failing backend")
	}

	history := memory.History()
	if len(history) != 1 || history[0].Question != "earlier" {
		t.Fatalf("memory changed despite backend failure: %+v", history)
	}
}

func TestAskLeavesMemoryUntouchedOnRetrieverFailure(t *testing.T) {
	memory := chat.NewMemory()
	engine := chat.NewEngine(&stubRetriever{err: errors.New("index gone")}, memory, &stubLLM{answer: "x"}, discard())

	if _, err := engine.Ask(context.Background(), "anything"); err == nil {
		t.Fatal("expected error from failing retriever")
	}
	if memory.Len() != 0 {
		t.Fatalf("memory changed despite retrieval failure: %d turns", memory.Len())
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	engine := chat.NewEngine(&stubRetriever{}, chat.NewMemory(), &stubLLM{}, discard())
	if _, err := engine.Ask(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestAskPromptContainsContextAndHistory(t *testing.T) {
	backend := &stubLLM{answer: "ok"}
	memory := chat.NewMemory()
	memory.Append(chat.Turn{Question: "previous question", Answer: "previous answer"})
	retriever := &stubRetriever{results: []index.ScoredChunk{
		scored("the relevant passage", "a.pdf", 0.9),
	}}
	engine := chat.NewEngine(retriever, memory, backend, discard())

	if _, err := engine.Ask(context.Background(), "new question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.calls) != 1 {
		t.Fatalf("expected one llm call, got %d", len(backend.calls))
	}
	messages := backend.calls[0]

	if messages[0].Role != llm.RoleSystem {
		t.Fatalf("expected system message first, got role %q", messages[0].Role)
	}
	joined := joinContents(messages)
	for _, want := range []string{"the relevant passage", "previous question", "previous answer", "new question"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("assembled prompt missing %q", want)
		}
	}
}

func TestAskAfterClearDropsPriorTurns(t *testing.T) {
	backend := &stubLLM{answer: "ok"}
	engine := chat.NewEngine(&stubRetriever{}, chat.NewMemory(), backend, discard())

	if _, err := engine.Ask(context.Background(), "remember the secret word: xyzzy"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine.ClearMemory()
	if _, err := engine.Ask(context.Background(), "what now?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := backend.calls[len(backend.calls)-1]
	if strings.Contains(joinContents(last), "xyzzy") {
		t.Fatal("prompt after clear still references a pre-clear turn")
	}
}

func joinContents(messages []llm.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
