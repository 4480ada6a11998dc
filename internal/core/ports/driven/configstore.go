package driven

// ConfigStore provides access to application configuration.
// The file adapter persists values to ~/.pdfqa/config.toml using
// dotted keys such as "vector_store.provider".
type ConfigStore interface {
	// Get retrieves a value and reports whether the key exists.
	Get(key string) (any, bool)

	// GetString returns "" when the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 when the key is missing or not an integer.
	GetInt(key string) int

	// GetBool returns false when the key is missing or not a boolean.
	GetBool(key string) bool

	// GetStringSlice returns nil when the key is missing or not a slice.
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	// An empty string removes the key.
	Set(key string, value any) error

	// Save persists the current configuration.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
