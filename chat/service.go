// Package chat holds the conversational core: the retriever contract,
// the rolling conversation memory, and the engine that merges both into
// grounded, attributed answers.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/docchat/index"
	"github.com/fabfab/docchat/llm"
)

// AnswerRecord is a generated answer plus the deduplicated source paths
// of the chunks it was conditioned on.
type AnswerRecord struct {
	Answer  string
	Sources []string
}

// Engine orchestrates one conversation: retrieve context for a
// question, condition the language model on context plus history, and
// record the exchange. Calls to Ask on one Engine must be serialized by
// the caller; memory and the assembled prompt depend on the full prior
// history.
type Engine struct {
	retriever Retriever
	memory    *Memory
	llm       llm.Client
	logger    *log.Logger
}

func NewEngine(retriever Retriever, memory *Memory, llmClient llm.Client, logger *log.Logger) *Engine {
	if memory == nil {
		memory = NewMemory()
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		retriever: retriever,
		memory:    memory,
		llm:       llmClient,
		logger:    logger,
	}
}

// Memory exposes the engine's conversation memory for history display.
func (e *Engine) Memory() *Memory {
	return e.memory
}

// ClearMemory drops all recorded turns.
func (e *Engine) ClearMemory() {
	e.memory.Clear()
}

// Ask answers a question from the indexed documents. The new turn is
// appended to memory only after the language model responds; a backend
// failure leaves memory exactly as it was.
func (e *Engine) Ask(ctx context.Context, question string) (AnswerRecord, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return AnswerRecord{}, fmt.Errorf("question cannot be empty")
	}
	if e.retriever == nil {
		return AnswerRecord{}, fmt.Errorf("retriever is not configured")
	}
	if e.llm == nil {
		return AnswerRecord{}, fmt.Errorf("llm client is not configured")
	}

	history := e.memory.History()

	retrieved, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(retrieved) == 0 {
		e.logger.Printf("no context retrieved for question; answering with empty context")
	}

	messages := buildMessages(history, retrieved, question)

	answer, err := e.llm.Generate(ctx, messages)
	if err != nil {
		return AnswerRecord{}, fmt.Errorf("llm generate: %w", err)
	}
	answer = strings.TrimSpace(answer)

	record := AnswerRecord{
		Answer:  answer,
		Sources: dedupeSources(retrieved),
	}

	e.memory.Append(Turn{Question: question, Answer: answer})

	return record, nil
}

const systemPrompt = "You are an intelligent assistant. Answer strictly using the provided context. " +
	"If the answer is not found in the context, say you don't know and do not try to make up an answer."

func buildMessages(history []Turn, retrieved []index.ScoredChunk, question string) []llm.Message {
	messages := make([]llm.Message, 0, 2+2*len(history))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: formatUserPrompt(retrieved, question)})
	return messages
}

func formatUserPrompt(retrieved []index.ScoredChunk, question string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if len(retrieved) == 0 {
		sb.WriteString("(no relevant context found)\n")
	}
	for _, result := range retrieved {
		sb.WriteString(strings.TrimSpace(result.Chunk.Text))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question:\n")
	sb.WriteString(question)
	return sb.String()
}

// dedupeSources collapses retrieved chunks to their unique source
// paths, keeping first-retrieved order. Multiple chunks or pages from
// one file count once.
func dedupeSources(retrieved []index.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(retrieved))
	sources := make([]string, 0, len(retrieved))
	for _, result := range retrieved {
		path := result.Chunk.Metadata.Source
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		sources = append(sources, path)
	}
	return sources
}
