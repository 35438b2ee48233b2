// Command studypackd runs the study-pack service: the HTTP API and the
// generation worker share one process so the per-pack run guard covers both
// the trigger endpoint and the pipeline itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studyforge/studypack/internal/api"
	"github.com/studyforge/studypack/internal/config"
	"github.com/studyforge/studypack/internal/database"
	"github.com/studyforge/studypack/internal/extract"
	"github.com/studyforge/studypack/internal/generate"
	"github.com/studyforge/studypack/internal/llm"
	"github.com/studyforge/studypack/internal/pipeline"
	"github.com/studyforge/studypack/internal/queue"
	"github.com/studyforge/studypack/internal/repository"
	"github.com/studyforge/studypack/internal/s3storage"
	"github.com/studyforge/studypack/internal/signing"
	"github.com/studyforge/studypack/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "studypackd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "studypackd",
		Short:        "Study-pack ingestion and grounded-generation service",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the generation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()
			return database.EnsureSchema(ctx, pool)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	store := repository.NewStore(pool)

	blobs, err := s3storage.New(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	chatClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	runner := pipeline.NewRunner(
		pipeline.Config{
			MaxTextChars:     cfg.MaxTextChars,
			ChunkTargetChars: cfg.ChunkTargetChars,
			MaxChunks:        cfg.MaxChunks,
			MaxFocusChunks:   cfg.MaxFocusChunks,
			RunTimeout:       cfg.RunTimeout,
		},
		store,
		extract.New(blobs, cfg.MaxFileBytes, cfg.MaxTextChars),
		generate.New(chatClient, cfg.FulltextModel, cfg.HighYieldModel),
		queue.NewEnqueuer(queueClient, cfg.RunTimeout+30*time.Second),
		log,
	)

	asynqServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
	})
	processor := worker.NewProcessor(runner, log)

	srv := api.New(cfg, store, blobs, runner, signing.NewSigner(cfg.SigningSecret), log)

	errCh := make(chan error, 2)
	go func() {
		errCh <- asynqServer.Run(processor.Handler())
	}()
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			asynqServer.Shutdown()
			return err
		}
	}
	asynqServer.Shutdown()
	return nil
}
