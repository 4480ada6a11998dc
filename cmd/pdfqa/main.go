// Command pdfqa indexes PDF documents and answers questions about them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/pdfqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pdfqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/cli"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/core/services"
	"github.com/custodia-labs/pdfqa/internal/logger"
	"github.com/custodia-labs/pdfqa/internal/normalisers/pdf"
	"github.com/custodia-labs/pdfqa/internal/postprocessors"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is normal.
	_ = godotenv.Load() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseDir, err := file.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	configStore, err := file.NewConfigStore(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	cli.SetVersion(version)
	cli.SetSettingsService(settingsService)
	cli.SetServiceFactory(func(ctx context.Context) (*cli.Services, error) {
		return buildServices(ctx, baseDir, settingsService)
	})

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// buildServices connects to the configured providers and assembles the
// pipeline and session services.
func buildServices(ctx context.Context, baseDir string, settingsService *services.SettingsService) (*cli.Services, error) {
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if err := pdf.CheckAvailable(); err != nil {
		logger.Warn("%v\n%s", err, pdf.InstallInstructions())
	}

	logger.Section("Connecting to providers")
	deps, err := ai.Initialise(ctx, settings)
	if err != nil {
		return nil, err
	}
	for _, w := range deps.Warnings {
		logger.Warn("%s", w)
	}

	registry, history, closeStore, err := openSessionStore(baseDir, settings.VectorStore.Provider)
	if err != nil {
		deps.Close()
		return nil, err
	}

	prompts, err := file.NewPromptStore(filepath.Join(baseDir, "prompts"))
	if err != nil {
		deps.Close()
		closeStore()
		return nil, fmt.Errorf("opening prompt store: %w", err)
	}

	stages := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(stages)
	processors, err := stages.BuildPipeline(postprocessors.StagesFromConfig(settingsService.GetPipelineConfig()))
	if err != nil {
		deps.Close()
		closeStore()
		return nil, fmt.Errorf("building post-processor pipeline: %w", err)
	}

	vs := settings.VectorStore
	pipeline := services.NewPipelineService(
		services.NewIndexManager(deps.VectorStore),
		pdf.New(),
		processors,
		deps.EmbeddingService,
		deps.LLMService,
		services.WithPrompts(prompts),
		services.WithIndexPlacement(vs.Metric, vs.Cloud, vs.Region),
	)

	uploadDir := settings.Server.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(baseDir, "uploads")
	}
	session := services.NewSessionService(
		pipeline,
		registry,
		history,
		uploadDir,
		services.WithMaxUploadBytes(settings.Server.MaxUploadBytes),
	)

	return &cli.Services{
		Pipeline: pipeline,
		Session:  session,
		Close: func() {
			deps.Close()
			closeStore()
		},
	}, nil
}

// openSessionStore returns the document registry and chat history. The
// in-memory vector store does not outlive the process, so session state
// paired with it is kept in memory too.
func openSessionStore(baseDir string, provider domain.VectorStoreProvider) (
	driven.DocumentRegistry, driven.ChatHistoryStore, func(), error,
) {
	if provider == domain.VectorStoreMemory {
		return memory.NewDocumentRegistry(), memory.NewChatHistoryStore(), func() {}, nil
	}

	store, err := sqlite.NewStore(filepath.Join(baseDir, "data"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening metadata store: %w", err)
	}
	return store.DocumentRegistry(), store.ChatHistoryStore(), func() { store.Close() }, nil
}
