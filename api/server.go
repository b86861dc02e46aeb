// Package api exposes the document chat workflows over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/fabfab/docchat/chat"
	"github.com/fabfab/docchat/index"
)

// Controller is the application surface the HTTP layer drives. Ask
// reports index.ErrNotFound while no document index exists yet; the
// server maps that to a distinct "ingest first" response so clients can
// tell it apart from a failed answer.
type Controller interface {
	Ingest(ctx context.Context, dir, pattern string) (int, error)
	Ask(ctx context.Context, question string) (chat.AnswerRecord, error)
	ClearMemory()
}

type Server struct {
	ctrl    Controller
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Dir     string `json:"dir"`
	Pattern string `json:"pattern"`
}

type ingestResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// New constructs a Server driving the provided controller.
func New(ctrl Controller, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{ctrl: ctrl, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	chunks, err := s.ctrl.Ingest(r.Context(), strings.TrimSpace(req.Dir), strings.TrimSpace(req.Pattern))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{Message: "ingestion complete", Chunks: chunks})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question cannot be empty"))
		return
	}

	record, err := s.ctrl.Ask(r.Context(), question)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			s.writeError(w, http.StatusConflict, fmt.Errorf("no index yet: ingest documents first"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{Answer: record.Answer, Sources: record.Sources})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	s.ctrl.ClearMemory()
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "conversation memory cleared"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Printf("http %d: %v", status, err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
