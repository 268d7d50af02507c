package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"quiz-practice/internal/app"
	"quiz-practice/internal/config"
	"quiz-practice/internal/domain"
	"quiz-practice/internal/identity"
	"quiz-practice/internal/infra/memory"
	pgloader "quiz-practice/internal/infra/postgres"
	infraredis "quiz-practice/internal/infra/redis"
	"quiz-practice/internal/remote"
	transport "quiz-practice/internal/transport/http"
)

const defaultCollectionID = "csharp-fundamentals"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz practice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, b, err := loadConfigWithBackend(ctx, configPath)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var client *remote.Client
	if cfg.Remote.BaseURL != "" {
		client = remote.NewClient(cfg.Remote.BaseURL,
			remote.WithTimeout(config.TTLDuration(cfg.Remote.Timeout, remote.DefaultTimeout)))
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleCollections())
	switch {
	case pool != nil:
		loader = pgloader.NewCatalogLoader(pool)
	case client != nil:
		loader = remote.NewCatalogLoader(client, cfg.Catalog.PageSize)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs app.CatalogRepository
	if b.redis != nil {
		catalogs = infraredis.NewCatalogRepository(b.redis, loader, config.TTLDuration(cfg.Redis.TTL, catalogTTL))
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var apiFactory app.APIFactory
	if client != nil {
		apiFactory = func(id identity.Identity) app.ScoringAPI {
			return client.WithTokens(id)
		}
	} else {
		log.Printf("no scoring api configured; answers are scored locally")
	}

	var verifier *identity.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = identity.NewVerifier(cfg.Auth.JWTSecret)
	}

	collectionID := cfg.Catalog.Collection
	if collectionID == "" {
		collectionID = defaultCollectionID
	}

	practice := app.NewPractice(b.storage, sessionTTL(cfg), catalogs, apiFactory)
	wsHandler := transport.NewWSHandler(practice, verifier, collectionID)
	adminHandler := transport.NewAdminHandler(verifier, practice)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/admin/progress", adminHandler.ServeProgress)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz practice on :%s (collection %s)", finalPort, collectionID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleCollections is served when neither Postgres nor a scoring API is
// configured.
func sampleCollections() map[string]domain.Collection {
	return map[string]domain.Collection{
		defaultCollectionID: {
			ID:   defaultCollectionID,
			Name: "C# fundamentals",
			Questions: []domain.Question{
				{
					ID:         1,
					Type:       domain.TypeMultipleChoice,
					Category:   domain.CategoryOOP,
					Difficulty: domain.DifficultyBeginner,
					Prompt:     "Which of these can an interface declare?",
					Options: []domain.Option{
						{ID: "A", Text: "Instance fields"},
						{ID: "B", Text: "Methods"},
						{ID: "C", Text: "Properties"},
						{ID: "D", Text: "Constructors"},
					},
					CorrectOptions: []string{"B", "C"},
					Explanation:    "Interfaces declare members but no instance state or constructors.",
				},
				{
					ID:          2,
					Type:        domain.TypeTrueFalse,
					Category:    domain.CategoryBasics,
					Difficulty:  domain.DifficultyBeginner,
					Prompt:      "string is a reference type.",
					Solution:    "true",
					Explanation: "System.String is a class.",
				},
				{
					ID:          3,
					Type:        domain.TypeFillInBlank,
					Category:    domain.CategoryLINQ,
					Difficulty:  domain.DifficultyBeginner,
					Prompt:      "Keep only even numbers.",
					Template:    "var evens = numbers.___(n => n % 2 == 0);",
					Solution:    "Where",
					Explanation: "Where filters a sequence by a predicate.",
				},
				{
					ID:          4,
					Type:        domain.TypeOutputPrediction,
					Category:    domain.CategoryCollections,
					Difficulty:  domain.DifficultyIntermediate,
					Prompt:      "var list = new List<int> { 3, 1, 2 };\nlist.Sort();\nConsole.WriteLine(string.Join(\",\", list));",
					Solution:    "1,2,3",
					Explanation: "List<T>.Sort sorts in place in ascending order.",
				},
				{
					ID:          5,
					Type:        domain.TypeErrorSpotting,
					Category:    domain.CategoryExceptions,
					Difficulty:  domain.DifficultyIntermediate,
					Prompt:      "Fix the catch clause so the original stack trace is kept.",
					Template:    "catch (Exception ex) { throw ex; }",
					Solution:    "catch (Exception ex) { throw; }",
					Explanation: "throw; rethrows without resetting the stack trace.",
				},
				{
					ID:          6,
					Type:        domain.TypeCodeWriting,
					Category:    domain.CategoryAsync,
					Difficulty:  domain.DifficultyAdvanced,
					Prompt:      "Write a statement that waits one second asynchronously.",
					Solution:    "await Task.Delay(1000);",
					Explanation: "Task.Delay does not block the calling thread.",
				},
				{
					ID:         7,
					Type:       domain.TypeMultipleChoice,
					Category:   domain.CategoryGenerics,
					Difficulty: domain.DifficultyAdvanced,
					Prompt:     "Which constraints allow new T()?",
					Options: []domain.Option{
						{ID: "A", Text: "where T : class"},
						{ID: "B", Text: "where T : new()"},
						{ID: "C", Text: "where T : struct"},
					},
					CorrectOptions: []string{"B", "C"},
					Explanation:    "new() and struct both guarantee a parameterless constructor.",
				},
			},
		},
	}
}
