package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/interview-progress/internal/config"
	"github.com/jonathan/interview-progress/internal/llm"
	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/questions"
	"github.com/jonathan/interview-progress/internal/server"
	"github.com/jonathan/interview-progress/internal/server/ratelimit"
)

var (
	servePort       int
	serveStore      string
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that records answered questions and serves questions
at each user's current difficulty. Questions come from Gemini when
GEMINI_API_KEY is set, with the built-in question bank as fallback.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Store driver: postgres, sqlite or memory (overrides STORE_DRIVER)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Optional JSON config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveStore != "" {
		if err := os.Setenv("STORE_DRIVER", serveStore); err != nil {
			return err
		}
	}

	progressCfg, storeCfg, err := loadConfigs(serveConfigPath)
	if err != nil {
		return err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", storeCfg.Driver, err)
	}
	defer store.Close()

	generator, closeGenerator, err := newGenerator(ctx)
	if err != nil {
		return err
	}
	defer closeGenerator()

	var limiter *ratelimit.Limiter
	if rlCfg := ratelimit.LoadConfig(); rlCfg.Enabled {
		limiter = ratelimit.NewLimiter(rlCfg)
	}

	srv, err := server.New(server.Config{Port: servePort}, server.Deps{
		Progress:    progress.NewService(store, serviceConfig(progressCfg)),
		Questions:   generator,
		JWT:         server.NewJWTService(jwtCfg),
		RateLimiter: limiter,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Printf("[serve] store=%s min_questions=%d min_accuracy=%.2f",
		storeCfg.Driver, progressCfg.MinQuestions, progressCfg.MinAccuracy)
	return srv.Run(ctx)
}

// newGenerator returns the Gemini generator backed by the question bank, or
// the bank alone when no API key is configured.
func newGenerator(ctx context.Context) (questions.Generator, func(), error) {
	static, err := questions.NewStaticGenerator()
	if err != nil {
		return nil, nil, err
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("[serve] GEMINI_API_KEY not set; serving questions from the built-in bank")
		return static, func() {}, nil
	}

	llmCfg, err := llm.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	client, err := llm.NewGeminiClient(ctx, llmCfg, apiKey)
	if err != nil {
		return nil, nil, err
	}

	generator := &questions.Fallback{
		Primary:   questions.NewLLMGenerator(client),
		Secondary: static,
	}
	return generator, func() { _ = client.Close() }, nil
}
