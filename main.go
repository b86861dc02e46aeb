package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/fabfab/docchat/api"
	"github.com/fabfab/docchat/chat"
	"github.com/fabfab/docchat/config"
	"github.com/fabfab/docchat/database"
	"github.com/fabfab/docchat/document"
	"github.com/fabfab/docchat/embeddings"
	"github.com/fabfab/docchat/index"
	"github.com/fabfab/docchat/ingestion"
	"github.com/fabfab/docchat/llm"
	"github.com/fabfab/docchat/splitter"
	"github.com/fabfab/docchat/tui"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd(logger, os.Args[2:])
	case "chat":
		chatCmd(logger, os.Args[2:])
	case "serve":
		serveCmd(logger, os.Args[2:])
	case "clear":
		clearCmd(logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// app wires configuration, backends, and pipeline state together. It
// implements api.Controller and tui.Engine, serializing conversation
// access behind one mutex.
type app struct {
	cfg      config.Config
	logger   *log.Logger
	embedder embeddings.Embedder
	llm      llm.Client
	svc      *ingestion.Service

	mu       sync.Mutex
	searcher index.Searcher
	engine   *chat.Engine
	corpus   string
}

func newApp(cfg config.Config, logger *log.Logger) (*app, error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	split, err := splitter.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("splitter setup: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		llm:      llmClient,
		svc:      ingestion.NewService(document.NewPDFExtractor(), split, logger),
	}, nil
}

// Prepare binds the engine to an existing index and describes the
// corpus. It reports index.ErrNotFound when no snapshot exists yet.
func (a *app) Prepare(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.bindLocked(ctx); err != nil {
		return "", err
	}
	return a.corpus, nil
}

func (a *app) bindLocked(ctx context.Context) error {
	if a.engine != nil {
		return nil
	}

	switch a.cfg.Store.Type {
	case config.StorePostgres:
		store, err := a.openPostgresLocked(ctx)
		if err != nil {
			return err
		}
		a.searcher = store
		a.corpus = "postgres chunk store"
	default:
		ix, err := index.Load(a.cfg.IndexDir)
		if err != nil {
			return err
		}
		a.searcher = ix
		a.corpus = fmt.Sprintf("index of %d chunks", ix.Len())
	}

	a.rebindEngineLocked()
	return nil
}

func (a *app) openPostgresLocked(ctx context.Context) (*index.PostgresStore, error) {
	pool, err := database.NewPostgresPool(ctx, a.cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool, a.cfg.Embeddings.Dimension); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return index.NewPostgresStore(pool), nil
}

func (a *app) rebindEngineLocked() {
	memory := chat.NewMemory()
	if a.engine != nil {
		memory = a.engine.Memory()
	}
	retriever := chat.NewVectorRetriever(a.searcher, a.embedder, a.cfg.Retrieval.K)
	a.engine = chat.NewEngine(retriever, memory, a.llm, a.logger)
}

// Ingest discovers, extracts, segments, embeds, and indexes documents,
// then rebinds the conversation engine to the completed index.
func (a *app) Ingest(ctx context.Context, dir, pattern string) (int, error) {
	if dir == "" {
		dir = a.cfg.DataDir
	}

	paths, err := a.svc.Discover(dir, pattern)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no documents matched under %s", dir)
	}

	chunks, err := a.svc.Chunks(ctx, paths)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.cfg.Store.Type {
	case config.StorePostgres:
		store, ok := a.searcher.(*index.PostgresStore)
		if !ok {
			var err error
			if store, err = a.openPostgresLocked(ctx); err != nil {
				return 0, err
			}
		}
		vectors, err := index.EmbedChunks(ctx, chunks, a.embedder)
		if err != nil {
			return 0, err
		}
		if err := store.Add(ctx, chunks, vectors); err != nil {
			return 0, err
		}
		a.searcher = store
		a.corpus = "postgres chunk store"
	default:
		ix, err := index.Build(ctx, chunks, a.embedder)
		if err != nil {
			return 0, err
		}
		if err := ix.Save(a.cfg.IndexDir); err != nil {
			return 0, err
		}
		a.searcher = ix
		a.corpus = fmt.Sprintf("index of %d chunks", ix.Len())
	}

	a.rebindEngineLocked()
	return len(chunks), nil
}

func (a *app) Ask(ctx context.Context, question string) (chat.AnswerRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.bindLocked(ctx); err != nil {
		return chat.AnswerRecord{}, err
	}
	return a.engine.Ask(ctx, question)
}

func (a *app) ClearMemory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		a.engine.ClearMemory()
	}
}

var (
	_ api.Controller = (*app)(nil)
	_ tui.Engine     = (*app)(nil)
)

func ingestCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfgPath := flags.String("config", "config.yaml", "path to YAML config file")
	dataDir := flags.String("dir", "", "directory containing PDF documents (defaults to data_dir from config)")
	pattern := flags.String("pattern", ingestion.DefaultPattern, "glob pattern for document discovery")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}

	var bar *progressbar.ProgressBar
	a.svc.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "ingesting")
		}
		_ = bar.Add(1)
	}

	chunks, err := a.Ingest(ctx, *dataDir, *pattern)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
	logger.Printf("ingested %d chunks using %s/%s embeddings", chunks, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)
}

func chatCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	cfgPath := flags.String("config", "config.yaml", "path to YAML config file")
	question := flags.String("question", "", "ask a single question and exit")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}

	corpus, err := a.Prepare(ctx)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			logger.Fatalf("no index yet: run `docchat ingest` first")
		}
		logger.Fatalf("load index: %v", err)
	}

	if strings.TrimSpace(*question) != "" {
		record, err := a.Ask(ctx, *question)
		if err != nil {
			logger.Fatalf("chat failed: %v", err)
		}
		fmt.Println(record.Answer)
		if len(record.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for idx, source := range record.Sources {
				fmt.Printf("%d. %s\n", idx+1, source)
			}
		}
		return
	}

	model := tui.New(a, corpus)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Fatalf("chat ui: %v", err)
	}
}

func serveCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := flags.String("config", "config.yaml", "path to YAML config file")
	addr := flags.String("addr", ":8080", "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: api.New(a, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func clearCmd(logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	cfgPath := flags.String("config", "config.yaml", "path to YAML config file")
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the ingested document index. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Store.Type {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			logger.Fatalf("postgres connection: %v", err)
		}
		defer pool.Close()
		if err := index.NewPostgresStore(pool).Clear(ctx); err != nil {
			logger.Fatalf("clear postgres store: %v", err)
		}
		logger.Println("cleared postgres chunk store")
	default:
		if err := os.RemoveAll(cfg.IndexDir); err != nil {
			logger.Fatalf("remove index snapshot: %v", err)
		}
		logger.Printf("removed index snapshot at %s", cfg.IndexDir)
	}
}

func printUsage() {
	fmt.Println("Usage: docchat <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Extract, segment, and index PDF documents (use --dir to override the data directory)")
	fmt.Println("  chat     Converse with the indexed documents (interactive, or --question for one answer)")
	fmt.Println("  serve    Expose ingest/chat/clear over HTTP")
	fmt.Println("  clear    Delete the ingested document index")
}
