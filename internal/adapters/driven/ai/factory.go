// Package ai provides factory functions for creating AI service and vector store adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/pdfqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/pdfqa/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/pdfqa/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/pdfqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/pdfqa/internal/adapters/driven/llm/openai"
	memoryvs "github.com/custodia-labs/pdfqa/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/pdfqa/internal/adapters/driven/vectorstore/pinecone"
	"github.com/custodia-labs/pdfqa/internal/adapters/driven/vectorstore/postgres"
	redisvs "github.com/custodia-labs/pdfqa/internal/adapters/driven/vectorstore/redis"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixHint is appended to configuration errors.
const fixHint = "Run 'pdfqa settings show' and 'pdfqa settings set' to fix"

// InitResult contains the services built from application settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VectorStore      driven.VectorStore
	Warnings         []string // Non-fatal issues, such as a missing LLM.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorStore != nil {
		r.VectorStore.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds every service the pipeline needs and checks connectivity.
// The embedding service and vector store are required. A missing or
// unreachable LLM is reported as a warning so indexing still works.
func Initialise(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider not configured. %s",
			domain.ErrEmbeddingUnavailable, fixHint)
	}
	result.EmbeddingService = embedder

	store, err := CreateAndValidateVectorStore(ctx, &settings.VectorStore)
	if err != nil {
		result.Close()
		return nil, err
	}
	if store == nil {
		result.Close()
		return nil, fmt.Errorf("%w: vector store not configured. %s",
			domain.ErrVectorStoreUnavailable, fixHint)
	}
	result.VectorStore = store

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case llm == nil:
		result.Warnings = append(result.Warnings, "LLM provider not configured; questions cannot be answered")
	default:
		result.LLMService = llm
	}

	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, fixHint)
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrLLMUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateVectorStore creates a vector store and checks it can list indexes.
func CreateAndValidateVectorStore(ctx context.Context, settings *domain.VectorStoreSettings) (driven.VectorStore, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	store, err := CreateVectorStore(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrVectorStoreUnavailable, err, fixHint)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := store.ListIndexes(pingCtx); err != nil {
		store.Close()
		if errors.Is(err, domain.ErrVectorStoreUnavailable) {
			return nil, fmt.Errorf("store unreachable (%w). %s", err, fixHint)
		}
		return nil, fmt.Errorf("%w: store unreachable (%w). %s",
			domain.ErrVectorStoreUnavailable, err, fixHint)
	}

	return store, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// This is intended for use when settings change, to validate credentials early.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// This is intended for use when settings change, to validate credentials early.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateVectorStoreConfig validates a vector store configuration by listing indexes.
func ValidateVectorStoreConfig(settings *domain.VectorStoreSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	store, err := CreateVectorStore(ctx, settings)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.ListIndexes(ctx)
	return err
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings)

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings)

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateVectorStore creates the vector store selected by settings.
// Returns nil if the store is not configured.
func CreateVectorStore(ctx context.Context, settings *domain.VectorStoreSettings) (driven.VectorStore, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.VectorStorePinecone:
		return pinecone.NewStore(pinecone.Config{
			APIKey:     settings.APIKey,
			ControlURL: settings.ControlURL,
		})

	case domain.VectorStoreRedis:
		return redisvs.NewStore(redisvs.Config{URL: settings.RedisURL})

	case domain.VectorStorePostgres:
		return postgres.NewStore(ctx, postgres.Config{URL: settings.PostgresURL})

	case domain.VectorStoreMemory:
		return memoryvs.NewStore(), nil

	default:
		return nil, fmt.Errorf("unsupported vector store: %s", settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
