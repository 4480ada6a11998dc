package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// newOpenAIServer serves the models endpoint used by Ping.
func newOpenAIServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newPineconeServer serves the list indexes endpoint.
func newPineconeServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":"UNAVAILABLE","message":"down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"indexes":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		wantErr     bool
		errContains string
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.EmbeddingSettings{},
			wantNil:  true,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.AIProviderOllama,
				BaseURL:    "http://localhost:11434",
				Model:      "mxbai-embed-large",
				Dimensions: 1024,
			},
		},
		{
			name: "ollama provider rejects bad URL",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "://bad",
			},
			wantNil: true,
			wantErr: true,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name: "anthropic provider is not configured for embeddings",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			wantNil: true,
		},
		{
			name: "unknown provider returns nil (not configured)",
			settings: &domain.EmbeddingSettings{
				Provider: "unknown",
				APIKey:   "test-key",
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			svc.Close()
		})
	}
}

func TestCreateEmbeddingService_PassesDimensions(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider:   domain.AIProviderOpenAI,
		APIKey:     "test-key",
		Dimensions: 512,
	})
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, 512, svc.Dimensions())
	assert.Equal(t, "text-embedding-3-small", svc.ModelName())
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
		wantErr  bool
		model    string
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.LLMSettings{},
			wantNil:  true,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "llama3.2",
			},
			model: "llama3.2",
		},
		{
			name: "openai provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
			},
			model: "gpt-4o-mini",
		},
		{
			name: "anthropic provider creates service",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "test-key",
			},
			model: "claude-3-7-sonnet-latest",
		},
		{
			name: "openai without key is not configured",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderOpenAI,
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.model, svc.ModelName())
			svc.Close()
		})
	}
}

func TestCreateVectorStore(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.VectorStoreSettings
		wantNil  bool
		wantErr  bool
	}{
		{
			name:     "nil settings returns nil",
			settings: nil,
			wantNil:  true,
		},
		{
			name:     "pinecone without key is not configured",
			settings: &domain.VectorStoreSettings{Provider: domain.VectorStorePinecone},
			wantNil:  true,
		},
		{
			name: "pinecone creates store",
			settings: &domain.VectorStoreSettings{
				Provider: domain.VectorStorePinecone,
				APIKey:   "pc-key",
			},
		},
		{
			name: "redis creates store",
			settings: &domain.VectorStoreSettings{
				Provider: domain.VectorStoreRedis,
				RedisURL: "redis://localhost:6379/0",
			},
		},
		{
			name: "redis rejects bad URL",
			settings: &domain.VectorStoreSettings{
				Provider: domain.VectorStoreRedis,
				RedisURL: "http://localhost",
			},
			wantErr: true,
		},
		{
			name: "pgvector creates store",
			settings: &domain.VectorStoreSettings{
				Provider:    domain.VectorStorePostgres,
				PostgresURL: "postgres://pdfqa:pw@127.0.0.1:1/pdfqa",
			},
		},
		{
			name:     "memory creates store",
			settings: &domain.VectorStoreSettings{Provider: domain.VectorStoreMemory},
		},
		{
			name:     "unknown provider returns nil",
			settings: &domain.VectorStoreSettings{Provider: "chroma"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := CreateVectorStore(context.Background(), tt.settings)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, store)
				return
			}
			require.NotNil(t, store)
			assert.NoError(t, store.Close())
		})
	}
}

func TestValidateEmbeddingConfig(t *testing.T) {
	t.Run("unconfigured is valid", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(nil))
		assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{}))
	})

	t.Run("reachable provider", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusOK)
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "test-key",
			BaseURL:  srv.URL + "/v1",
		})
		assert.NoError(t, err)
	})

	t.Run("rejected key", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusUnauthorized)
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "bad-key",
			BaseURL:  srv.URL + "/v1",
		})
		assert.Error(t, err)
	})
}

func TestValidateLLMConfig(t *testing.T) {
	assert.NoError(t, ValidateLLMConfig(nil))

	srv := newOpenAIServer(t, http.StatusOK)
	err := ValidateLLMConfig(&domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/v1",
	})
	assert.NoError(t, err)
}

func TestValidateVectorStoreConfig(t *testing.T) {
	t.Run("unconfigured is valid", func(t *testing.T) {
		assert.NoError(t, ValidateVectorStoreConfig(nil))
	})

	t.Run("memory", func(t *testing.T) {
		assert.NoError(t, ValidateVectorStoreConfig(&domain.VectorStoreSettings{Provider: domain.VectorStoreMemory}))
	})

	t.Run("pinecone reachable", func(t *testing.T) {
		srv := newPineconeServer(t, http.StatusOK)
		err := ValidateVectorStoreConfig(&domain.VectorStoreSettings{
			Provider:   domain.VectorStorePinecone,
			APIKey:     "pc-key",
			ControlURL: srv.URL,
		})
		assert.NoError(t, err)
	})

	t.Run("pinecone down", func(t *testing.T) {
		srv := newPineconeServer(t, http.StatusServiceUnavailable)
		err := ValidateVectorStoreConfig(&domain.VectorStoreSettings{
			Provider:   domain.VectorStorePinecone,
			APIKey:     "pc-key",
			ControlURL: srv.URL,
		})
		assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
	})
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("unconfigured returns nil", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{})
		assert.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("unreachable service", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusUnauthorized)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "bad-key",
			BaseURL:  srv.URL + "/v1",
		})
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "pdfqa settings")
	})
}

func TestCreateAndValidateLLMService(t *testing.T) {
	t.Run("unconfigured returns nil", func(t *testing.T) {
		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{})
		assert.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("unreachable service", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusUnauthorized)
		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "bad-key",
			BaseURL:  srv.URL + "/v1",
		})
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestCreateAndValidateVectorStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := CreateAndValidateVectorStore(ctx, &domain.VectorStoreSettings{Provider: domain.VectorStoreMemory})
		require.NoError(t, err)
		require.NotNil(t, store)
		store.Close()
	})

	t.Run("rejected key", func(t *testing.T) {
		srv := newPineconeServer(t, http.StatusUnauthorized)
		store, err := CreateAndValidateVectorStore(ctx, &domain.VectorStoreSettings{
			Provider:   domain.VectorStorePinecone,
			APIKey:     "pc-key",
			ControlURL: srv.URL,
		})
		assert.Nil(t, store)
		assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
		assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrVectorStoreUnavailable.Error()))
	})

	t.Run("server down", func(t *testing.T) {
		srv := newPineconeServer(t, http.StatusServiceUnavailable)
		_, err := CreateAndValidateVectorStore(ctx, &domain.VectorStoreSettings{
			Provider:   domain.VectorStorePinecone,
			APIKey:     "pc-key",
			ControlURL: srv.URL,
		})
		assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
		assert.True(t, domain.IsTransient(err))
	})
}

func TestInitialise(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding and memory store without LLM", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusOK)
		settings := domain.DefaultAppSettings()
		settings.Embedding.APIKey = "test-key"
		settings.Embedding.BaseURL = srv.URL + "/v1"
		settings.VectorStore = domain.VectorStoreSettings{Provider: domain.VectorStoreMemory}
		settings.LLM = domain.LLMSettings{}

		result, err := Initialise(ctx, &settings)
		require.NoError(t, err)
		defer result.Close()

		assert.NotNil(t, result.EmbeddingService)
		assert.NotNil(t, result.VectorStore)
		assert.Nil(t, result.LLMService)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "LLM provider not configured")
	})

	t.Run("all services", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusOK)
		settings := domain.DefaultAppSettings()
		settings.Embedding.APIKey = "test-key"
		settings.Embedding.BaseURL = srv.URL + "/v1"
		settings.VectorStore = domain.VectorStoreSettings{Provider: domain.VectorStoreMemory}
		settings.LLM = domain.LLMSettings{
			Provider: domain.AIProviderOpenAI,
			APIKey:   "test-key",
			BaseURL:  srv.URL + "/v1",
		}

		result, err := Initialise(ctx, &settings)
		require.NoError(t, err)
		defer result.Close()

		assert.NotNil(t, result.LLMService)
		assert.Empty(t, result.Warnings)
	})

	t.Run("missing embedding provider", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{}

		_, err := Initialise(ctx, &settings)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("missing vector store", func(t *testing.T) {
		srv := newOpenAIServer(t, http.StatusOK)
		settings := domain.DefaultAppSettings()
		settings.Embedding.APIKey = "test-key"
		settings.Embedding.BaseURL = srv.URL + "/v1"
		settings.VectorStore = domain.VectorStoreSettings{Provider: domain.VectorStorePinecone}

		_, err := Initialise(ctx, &settings)
		assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
	})
}
