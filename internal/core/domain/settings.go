package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorStoreProvider identifies where per-document indexes live.
type VectorStoreProvider string

// Available vector store providers.
const (
	// VectorStorePinecone is the Pinecone serverless service.
	VectorStorePinecone VectorStoreProvider = "pinecone"

	// VectorStoreRedis is a Redis Stack server with RediSearch.
	VectorStoreRedis VectorStoreProvider = "redis"

	// VectorStorePostgres is PostgreSQL with the pgvector extension.
	VectorStorePostgres VectorStoreProvider = "pgvector"

	// VectorStoreMemory keeps indexes in process memory.
	VectorStoreMemory VectorStoreProvider = "memory"
)

// IsValid returns true if the provider is recognised.
func (p VectorStoreProvider) IsValid() bool {
	switch p {
	case VectorStorePinecone, VectorStoreRedis, VectorStorePostgres, VectorStoreMemory:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p VectorStoreProvider) RequiresAPIKey() bool {
	return p == VectorStorePinecone
}

// String returns the string representation.
func (p VectorStoreProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p VectorStoreProvider) Description() string {
	switch p {
	case VectorStorePinecone:
		return "Pinecone (serverless cloud)"
	case VectorStoreRedis:
		return "Redis Stack (RediSearch)"
	case VectorStorePostgres:
		return "PostgreSQL (pgvector)"
	case VectorStoreMemory:
		return "In-memory (not persisted)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the requested vector size.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider == AIProviderAnthropic || !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings holds vector store configuration.
type VectorStoreSettings struct {
	// Provider selects the backing store.
	Provider VectorStoreProvider

	// APIKey authenticates against Pinecone.
	APIKey string

	// ControlURL overrides the Pinecone control plane endpoint.
	ControlURL string

	// RedisURL is the redis:// connection string.
	RedisURL string

	// PostgresURL is the postgres:// connection string.
	PostgresURL string

	// Cloud and Region place new serverless indexes.
	Cloud  string
	Region string

	// Metric is the similarity metric for new indexes.
	Metric string
}

// IsConfigured returns true if the vector store is set up.
func (v VectorStoreSettings) IsConfigured() bool {
	switch v.Provider {
	case VectorStorePinecone:
		return v.APIKey != ""
	case VectorStoreRedis:
		return v.RedisURL != ""
	case VectorStorePostgres:
		return v.PostgresURL != ""
	case VectorStoreMemory:
		return true
	default:
		return false
	}
}

// ServerSettings holds HTTP request layer configuration.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// UploadDir is where uploaded PDFs are stored.
	UploadDir string

	// MaxUploadBytes caps the accepted upload size.
	MaxUploadBytes int64
}

// DefaultMaxUploadBytes is the default upload limit (50MB).
const DefaultMaxUploadBytes int64 = 50 * 1024 * 1024

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// VectorStore holds vector store settings.
	VectorStore VectorStoreSettings

	// Server holds request layer settings.
	Server ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty; they come from the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      DefaultEmbeddingModels()[AIProviderOpenAI],
			Dimensions: DefaultDimension,
		},
		LLM: LLMSettings{
			Provider: AIProviderAnthropic,
			Model:    DefaultLLMModels()[AIProviderAnthropic],
		},
		VectorStore: VectorStoreSettings{
			Provider: VectorStorePinecone,
			Cloud:    DefaultCloud,
			Region:   DefaultRegion,
			Metric:   DefaultMetric,
		},
		Server: ServerSettings{
			Addr:           "127.0.0.1:5000",
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllVectorStoreProviders returns the supported vector stores.
func AllVectorStoreProviders() []VectorStoreProvider {
	return []VectorStoreProvider{
		VectorStorePinecone,
		VectorStoreRedis,
		VectorStorePostgres,
		VectorStoreMemory,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
// Both produce 1024-dimension vectors.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "mxbai-embed-large",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-7-sonnet-latest",
	}
}

// PipelineConfig selects the post-processors run on every document.
type PipelineConfig struct {
	// Processors are processor names in execution order.
	Processors []string

	// ProcessorConfigs holds per-processor settings keyed by processor name.
	ProcessorConfigs map[string]map[string]any
}

// DefaultPipelineConfig splits text into 1000 character chunks with 200
// characters of overlap and then sanitizes chunk metadata.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "sanitizer"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": 1000,
				"overlap":    200,
			},
		},
	}
}
