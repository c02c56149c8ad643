package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"knowledgebase/internal/chunker"
	"knowledgebase/internal/config"
	"knowledgebase/internal/db"
	"knowledgebase/internal/embedding"
	"knowledgebase/internal/helper"
	"knowledgebase/internal/ingest"
	"knowledgebase/internal/llmservice"
	"knowledgebase/internal/rag"
	"knowledgebase/internal/retrieval"
	"knowledgebase/internal/session"
	"knowledgebase/internal/source"
	"knowledgebase/internal/vectorindex"
)

const (
	configFilePath = "./configs/config.yaml"

	indexPath      = "./chromemdb"
	collectionName = "knowledge_base"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	ingestDir := flag.String("ingest", "", "Ingest every document under this directory")
	query := flag.String("query", "", "Question to answer")
	sessionID := flag.String("session", "", "Session identifier (omit to start a new session)")
	userID := flag.String("user", "", "User identifier, required when ending a session")
	endSession := flag.Bool("end-session", false, "Flush the session to the archive and clear it")
	history := flag.Bool("history", false, "Print the archived turns of a session")
	reset := flag.Bool("reset", false, "Drop and recreate the database schema before running")
	local := flag.Bool("local", false, "Use the local chromem index instead of Postgres")
	flag.Parse()

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	app, err := newApp(ctx, cfg, *local, *reset)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing clients")
	}
	defer app.Close()

	switch {
	case *ingestDir != "":
		runIngest(ctx, app, *ingestDir)
	case *endSession:
		runEndSession(ctx, app, *sessionID, *userID)
	case *history:
		runHistory(ctx, app, *sessionID)
	case *query != "":
		runQuery(ctx, app, *query, *sessionID, *userID)
	default:
		log.Fatal().Msg("Provide -ingest <dir>, -query <question>, -history -session <id>, or -end-session with -session and -user")
	}
}

// app holds every process-wide client, initialized once at startup and torn
// down on shutdown.
type app struct {
	store     retrieval.Searcher
	replacer  ingest.Store
	cache     rag.AnswerCache
	archive   *db.Store
	memory    *session.Memory
	engine    *retrieval.Engine
	generator *llmservice.Client
	chunker   *chunker.Chunker
	rag       *rag.RAG
	cfg       *config.Config
	closers   []func() error

	pipelineFactory func(dir string) *ingest.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, local, reset bool) (*app, error) {
	a := &app{cfg: cfg}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	a.generator, err = llmservice.NewClient(&cfg.InferenceLLM, cfg.Timeouts.Generate())
	if err != nil {
		return nil, fmt.Errorf("initializing LLM client: %w", err)
	}

	if local {
		index, err := vectorindex.New(indexPath, collectionName)
		if err != nil {
			return nil, err
		}
		a.store = index
		a.replacer = index
		a.memory = session.NewMemory(session.NewMemoryCache(), nil, cfg.Session.TTL())
	} else {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		bundb := db.NewDB(sqldb, cfg.Database.Debug)
		a.closers = append(a.closers, bundb.Close)

		if reset {
			if err := db.DropSchema(ctx, bundb); err != nil {
				return nil, fmt.Errorf("dropping schema: %w", err)
			}
			log.Info().Msg("Schema dropped")
		}
		if err := db.InitDB(ctx, bundb, cfg.RAG.VectorSize); err != nil {
			return nil, fmt.Errorf("initializing database: %w", err)
		}

		store := db.NewStore(bundb)
		a.store = store
		a.replacer = store
		a.cache = store
		a.archive = store

		redisCache, err := session.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, falling back to in-process session cache")
			a.memory = session.NewMemory(session.NewMemoryCache(), store, cfg.Session.TTL())
		} else {
			a.closers = append(a.closers, redisCache.Close)
			a.memory = session.NewMemory(redisCache, store, cfg.Session.TTL())
		}
	}

	a.chunker = chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	a.engine = retrieval.NewEngine(
		embedder,
		a.store,
		cfg.RAG.TopK,
		cfg.RAG.MinSimilarity,
		cfg.Timeouts.Embed(),
		cfg.Timeouts.Search(),
	)
	a.rag = rag.NewRAG(a.engine, a.generator, a.memory, a.cache, cfg)

	a.pipelineFactory = func(dir string) *ingest.Pipeline {
		return ingest.NewPipeline(source.New(dir), a.chunker, embedder, a.replacer, cfg.Timeouts.Embed())
	}
	return a, nil
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("Error closing client")
		}
	}
}

func runIngest(ctx context.Context, a *app, dir string) {
	summary, err := a.pipelineFactory(dir).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion aborted")
	}
	helper.PrettyPrint(summary)
}

func runQuery(ctx context.Context, a *app, question, sessionID, userID string) {
	if sessionID == "" {
		sessionID = helper.NewSessionID()
		log.Info().Str("session_id", sessionID).Msg("Started new session")
	}

	response, err := a.rag.Query(ctx, rag.QueryRequest{
		Question:  question,
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	fmt.Printf("Question: %s\n\n", question)
	fmt.Printf("Answer: %s\n\n", response.Answer)
	if len(response.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range response.Sources {
			fmt.Printf("  %s (similarity %.3f)\n", src.Filename, src.Similarity)
		}
	}
	fmt.Printf("\nSession: %s\n", sessionID)
}

func runHistory(ctx context.Context, a *app, sessionID string) {
	if sessionID == "" {
		log.Fatal().Msg("Printing history requires -session")
	}
	if a.archive == nil {
		log.Fatal().Msg("History requires the Postgres archive; local mode keeps no archive")
	}

	turns, err := a.archive.SessionTurns(ctx, sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading archived session")
	}
	if len(turns) == 0 {
		fmt.Printf("No archived turns for session %s\n", sessionID)
		return
	}
	for _, turn := range turns {
		fmt.Printf("User: %s\nAssistant: %s\n\n", turn.Question, turn.Answer)
	}
}

func runEndSession(ctx context.Context, a *app, sessionID, userID string) {
	if sessionID == "" || userID == "" {
		log.Fatal().Msg("Ending a session requires both -session and -user")
	}
	if err := a.memory.EndSession(ctx, sessionID, userID); err != nil {
		log.Fatal().Err(err).Msg("Error ending session")
	}
	log.Info().Str("session_id", sessionID).Msg("Session ended")
}
