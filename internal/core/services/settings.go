package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyVSProvider      = "vector_store.provider"
	keyVSAPIKey        = "vector_store.api_key"
	keyVSControlURL    = "vector_store.control_url"
	keyVSRedisURL      = "vector_store.redis_url"
	keyVSPostgresURL   = "vector_store.postgres_url"
	keyVSCloud         = "vector_store.cloud"
	keyVSRegion        = "vector_store.region"
	keyVSMetric        = "vector_store.metric"
	keyServerAddr      = "server.addr"
	keyServerUploadDir = "server.upload_dir"
	keyServerMaxUpload = "server.max_upload_mb"
	keyPipelineProcs   = "pipeline.processors"
)

// Environment variables that override stored values.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvPineconeAPIKey  = "PINECONE_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvRedisURL        = "REDIS_URL"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvOllamaHost      = "OLLAMA_HOST"
)

const bytesPerMB = 1024 * 1024

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// Environment variables are read with os.LookupEnv.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup. Useful for testing.
func (s *SettingsService) WithEnv(lookup func(string) (string, bool)) *SettingsService {
	s.lookupEnv = lookup
	return s
}

// Get retrieves current application settings.
// Environment variables take precedence over stored API keys and URLs.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.configStore.GetString(keyEmbedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDimensions, defaults.Embedding.Dimensions),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.configStore.GetString(keyLLMModel),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		VectorStore: domain.VectorStoreSettings{
			Provider:    s.getVectorStore(defaults.VectorStore.Provider),
			APIKey:      s.configStore.GetString(keyVSAPIKey),
			ControlURL:  s.configStore.GetString(keyVSControlURL),
			RedisURL:    s.configStore.GetString(keyVSRedisURL),
			PostgresURL: s.configStore.GetString(keyVSPostgresURL),
			Cloud:       s.getString(keyVSCloud, defaults.VectorStore.Cloud),
			Region:      s.getString(keyVSRegion, defaults.VectorStore.Region),
			Metric:      s.getString(keyVSMetric, defaults.VectorStore.Metric),
		},
		Server: domain.ServerSettings{
			Addr:           s.getString(keyServerAddr, defaults.Server.Addr),
			UploadDir:      s.configStore.GetString(keyServerUploadDir),
			MaxUploadBytes: int64(s.getInt(keyServerMaxUpload, int(defaults.Server.MaxUploadBytes/bytesPerMB))) * bytesPerMB,
		},
	}

	// Models default per provider
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv overrides credentials and endpoints from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	env := func(name string) string {
		if s.lookupEnv == nil {
			return ""
		}
		v, _ := s.lookupEnv(name)
		return strings.TrimSpace(v)
	}

	providerKey := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return env(EnvOpenAIAPIKey)
		case domain.AIProviderAnthropic:
			return env(EnvAnthropicAPIKey)
		default:
			return ""
		}
	}

	if key := providerKey(settings.Embedding.Provider); key != "" {
		settings.Embedding.APIKey = key
	}
	if key := providerKey(settings.LLM.Provider); key != "" {
		settings.LLM.APIKey = key
	}
	if host := env(EnvOllamaHost); host != "" {
		if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = host
		}
		if settings.LLM.Provider.IsLocal() && settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = host
		}
	}
	if key := env(EnvPineconeAPIKey); key != "" {
		settings.VectorStore.APIKey = key
	}
	if url := env(EnvRedisURL); url != "" {
		settings.VectorStore.RedisURL = url
	}
	if url := env(EnvDatabaseURL); url != "" {
		settings.VectorStore.PostgresURL = url
	}
}

// Save persists application settings. API keys are only written when set.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVSProvider, settings.VectorStore.Provider.String()},
		{keyVSControlURL, settings.VectorStore.ControlURL},
		{keyVSRedisURL, settings.VectorStore.RedisURL},
		{keyVSPostgresURL, settings.VectorStore.PostgresURL},
		{keyVSCloud, settings.VectorStore.Cloud},
		{keyVSRegion, settings.VectorStore.Region},
		{keyVSMetric, settings.VectorStore.Metric},
		{keyServerAddr, settings.Server.Addr},
		{keyServerUploadDir, settings.Server.UploadDir},
		{keyServerMaxUpload, int(settings.Server.MaxUploadBytes / bytesPerMB)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := []struct {
		key   string
		value string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyVSAPIKey, settings.VectorStore.APIKey},
	}
	for _, v := range secrets {
		if v.value == "" {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set updates a single setting by its dotted key.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))

	switch key {
	case keyEmbedProvider:
		p := domain.AIProvider(value)
		if !isEmbeddingProvider(p) {
			return fmt.Errorf("%w: provider %q does not support embeddings", domain.ErrInvalidInput, value)
		}
		return s.set(key, value)

	case keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid LLM provider %q", domain.ErrInvalidInput, value)
		}
		return s.set(key, value)

	case keyVSProvider:
		if !domain.VectorStoreProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid vector store %q", domain.ErrInvalidInput, value)
		}
		return s.set(key, value)

	case keyEmbedDimensions, keyServerMaxUpload:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, key)
		}
		return s.set(key, n)

	case keyVSMetric:
		switch value {
		case "cosine", "euclidean", "dotproduct":
			return s.set(key, value)
		}
		return fmt.Errorf("%w: invalid metric %q", domain.ErrInvalidInput, value)

	case keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey,
		keyLLMModel, keyLLMBaseURL, keyLLMAPIKey,
		keyVSAPIKey, keyVSControlURL, keyVSRedisURL, keyVSPostgresURL, keyVSCloud, keyVSRegion,
		keyServerAddr, keyServerUploadDir:
		return s.set(key, value)
	}

	return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// SetAPIKey stores the API key for "embedding", "llm" or "vector_store".
func (s *SettingsService) SetAPIKey(target, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: API key is empty", domain.ErrInvalidInput)
	}
	switch target {
	case "embedding":
		return s.set(keyEmbedAPIKey, key)
	case "llm":
		return s.set(keyLLMAPIKey, key)
	case "vector_store", "pinecone":
		return s.set(keyVSAPIKey, key)
	}
	return fmt.Errorf("%w: unknown API key target %q", domain.ErrInvalidInput, target)
}

func (s *SettingsService) set(key string, value any) error {
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks that every provider needed to process and answer is configured.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if settings.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimensions must be positive, got %d", settings.Embedding.Dimensions))
	}
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider))
	}
	if !settings.VectorStore.IsConfigured() {
		errs = append(errs, fmt.Errorf("vector store %q is not configured", settings.VectorStore.Provider))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateConnectivity pings every configured provider.
func (s *SettingsService) ValidateConnectivity() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return errors.Join(
		s.aiValidator.ValidateEmbedding(&settings.Embedding),
		s.aiValidator.ValidateLLM(&settings.LLM),
		s.aiValidator.ValidateVectorStore(&settings.VectorStore),
	)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()

	if processors := s.configStore.GetStringSlice(keyPipelineProcs); len(processors) > 0 {
		cfg.Processors = processors
	}

	for _, name := range cfg.Processors {
		prefix := "pipeline." + name + "."
		for _, key := range []string{"chunk_size", "overlap"} {
			val, exists := s.configStore.Get(prefix + key)
			if !exists {
				continue
			}
			if cfg.ProcessorConfigs[name] == nil {
				cfg.ProcessorConfigs[name] = make(map[string]any)
			}
			cfg.ProcessorConfigs[name][key] = val
		}
	}

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVectorStore(defaultVal domain.VectorStoreProvider) domain.VectorStoreProvider {
	provider := domain.VectorStoreProvider(s.configStore.GetString(keyVSProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func isEmbeddingProvider(p domain.AIProvider) bool {
	for _, candidate := range domain.AllEmbeddingProviders() {
		if candidate == p {
			return true
		}
	}
	return false
}
