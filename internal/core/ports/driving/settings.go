package driving

import "github.com/custodia-labs/pdfqa/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	// Environment variables take precedence over stored API keys.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single setting by its dotted key (e.g. "llm.model").
	Set(key, value string) error

	// SetAPIKey stores the API key for "embedding", "llm" or "vector_store".
	SetAPIKey(target, key string) error

	// Validate checks that every required provider is configured.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateConnectivity pings every configured provider.
	ValidateConnectivity() error
}
