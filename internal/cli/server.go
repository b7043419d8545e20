package cli

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"narvalo-quiz/internal/app"
	"narvalo-quiz/internal/config"
	"narvalo-quiz/internal/infra/bundle"
	"narvalo-quiz/internal/infra/memory"
	"narvalo-quiz/internal/infra/opentdb"
	"narvalo-quiz/internal/infra/postgres"
	redisstore "narvalo-quiz/internal/infra/redis"
	transport "narvalo-quiz/internal/transport/http"
	"narvalo-quiz/internal/trivia"
)

const defaultFetchTimeout = 10 * time.Second

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := listenPort(portFlag, cfg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := newQuestionLoader(cfg)
	if err != nil {
		return err
	}

	var scores app.ScoreStore
	switch {
	case redisClient != nil:
		scores = redisstore.NewScoreStore(redisClient, cfg.Scores.Namespace)
	case pool != nil:
		scores = postgres.NewScoreStore(pool, cfg.Scores.Namespace)
	default:
		log.Printf("no redis or postgres configured, scores are kept in memory")
		scores = memory.NewScoreStore()
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}
	service := app.NewQuizService(store, loader, scores, slog.Default())
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz server on :%s", finalPort)
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

// listenPort prefers the flag (or PORT), then server.port from the config, then 8080.
func listenPort(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Server.Port != "" {
		return cfg.Server.Port
	}
	return "8080"
}

// newQuestionLoader wires the Open Trivia DB client and the bundled bank behind the retrying loader.
func newQuestionLoader(cfg config.Config) (*trivia.Loader, error) {
	bank, err := bundle.NewEmbedded()
	if cfg.Trivia.BundlePath != "" {
		bank, err = bundle.Open(cfg.Trivia.BundlePath)
	}
	if err != nil {
		return nil, err
	}

	client := opentdb.NewClient(cfg.Trivia.BaseURL, &http.Client{}, config.Duration(cfg.Trivia.Timeout, defaultFetchTimeout))
	return trivia.NewLoader(client, bank,
		trivia.WithAmount(cfg.Trivia.Amount),
		trivia.WithRetry(cfg.Trivia.MaxAttempts, config.Duration(cfg.Trivia.InitialBackoff, trivia.DefaultInitialBackoff)),
		trivia.WithLogger(slog.Default()),
	), nil
}
