package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, LLM provider, vector store
and HTTP server.

Settings live in ~/.pdfqa/config.toml. The environment variables
PINECONE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, REDIS_URL, DATABASE_URL
and OLLAMA_HOST take precedence over stored values and may be placed in a
.env file in the working directory.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key. An empty value removes the key.

Keys:
  embedding.provider, embedding.model, embedding.base_url, embedding.dimensions
  llm.provider, llm.model, llm.base_url
  vector_store.provider, vector_store.control_url, vector_store.redis_url,
  vector_store.postgres_url, vector_store.cloud, vector_store.region,
  vector_store.metric
  server.addr, server.upload_dir, server.max_upload_mb`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key [embedding|llm|vector_store]",
	Short: "Store an API key",
	Long:  `Prompt for an API key without echoing it and store it in the config file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsSetKey,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all providers step by step.`,
	RunE:  runSettingsWizard,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check connectivity to every configured provider",
	RunE:  runSettingsValidate,
}

// stdin is the source of interactive input.
var stdin io.Reader = os.Stdin

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	// LLM settings
	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	// Vector store settings
	vs := settings.VectorStore
	cmd.Println("[Vector Store]")
	cmd.Printf("  Provider: %s\n", vs.Provider.Description())
	switch vs.Provider {
	case domain.VectorStorePinecone:
		cmd.Printf("  API Key: %s\n", displayKey(vs.APIKey))
		cmd.Printf("  Placement: %s/%s (%s)\n", vs.Cloud, vs.Region, vs.Metric)
	case domain.VectorStoreRedis:
		cmd.Printf("  URL: %s\n", vs.RedisURL)
	case domain.VectorStorePostgres:
		cmd.Printf("  URL: %s\n", maskURL(vs.PostgresURL))
	case domain.VectorStoreMemory:
	}
	cmd.Printf("  Status: %s\n", configuredStatus(vs.IsConfigured()))
	cmd.Println()

	// Server settings
	cmd.Println("[Server]")
	cmd.Printf("  Address: %s\n", settings.Server.Addr)
	cmd.Printf("  Upload Dir: %s\n", settings.Server.UploadDir)
	cmd.Printf("  Max Upload: %d MB\n", settings.Server.MaxUploadBytes/(1024*1024))
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'pdfqa settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	if args[1] == "" {
		cmd.Printf("Removed %s\n", args[0])
	} else {
		cmd.Printf("Set %s = %s\n", args[0], args[1])
	}
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Printf("Enter %s API key: ", args[0])
	key := readPassword()
	cmd.Println()

	if err := settingsService.SetAPIKey(args[0], key); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	cmd.Printf("Stored %s API key %s\n", args[0], maskAPIKey(strings.TrimSpace(key)))
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateConnectivity(); err != nil {
		cmd.Println("FAILED")
		return err
	}
	cmd.Println("OK")
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("pdfqa Settings Wizard")
	cmd.Println("=====================")
	cmd.Println()

	reader := bufio.NewReader(stdin)

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	if err := configureAIProvider(cmd, reader, "embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels()); err != nil {
		return err
	}

	cmd.Println("Step 2: LLM Provider")
	cmd.Println("--------------------")
	if err := configureAIProvider(cmd, reader, "llm",
		domain.AllLLMProviders(), domain.DefaultLLMModels()); err != nil {
		return err
	}

	cmd.Println("Step 3: Vector Store")
	cmd.Println("--------------------")
	if err := configureVectorStore(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

// configureAIProvider prompts for the provider, model and API key of target
// ("embedding" or "llm").
func configureAIProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	target string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	if err := settingsService.Set(target+".provider", selected.String()); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", target, err)
	}
	if err := settingsService.Set(target+".model", model); err != nil {
		return fmt.Errorf("failed to configure %s model: %w", target, err)
	}

	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		if key := readPasswordFrom(reader); key != "" {
			if err := settingsService.SetAPIKey(target, key); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}
		}
		cmd.Println()
	}

	cmd.Printf("%s provider configured: %s (%s)\n\n", target, selected.Description(), model)
	return nil
}

func configureVectorStore(cmd *cobra.Command, reader *bufio.Reader) error {
	providers := domain.AllVectorStoreProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	if err := settingsService.Set("vector_store.provider", selected.String()); err != nil {
		return fmt.Errorf("failed to configure vector store: %w", err)
	}

	switch selected {
	case domain.VectorStorePinecone:
		cmd.Print("Enter Pinecone API key (blank to use PINECONE_API_KEY): ")
		if key := readPasswordFrom(reader); key != "" {
			if err := settingsService.SetAPIKey("vector_store", key); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}
		}
		cmd.Println()
	case domain.VectorStoreRedis:
		cmd.Print("Enter Redis URL [redis://localhost:6379]: ")
		url := readLine(reader)
		if url == "" {
			url = "redis://localhost:6379"
		}
		if err := settingsService.Set("vector_store.redis_url", url); err != nil {
			return fmt.Errorf("failed to set Redis URL: %w", err)
		}
	case domain.VectorStorePostgres:
		cmd.Print("Enter PostgreSQL URL: ")
		if url := readLine(reader); url != "" {
			if err := settingsService.Set("vector_store.postgres_url", url); err != nil {
				return fmt.Errorf("failed to set PostgreSQL URL: %w", err)
			}
		}
	case domain.VectorStoreMemory:
	}

	cmd.Printf("Vector store configured: %s\n\n", selected.Description())
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret from stdin without echo when stdin is a terminal.
func readPassword() string {
	return readPasswordFrom(bufio.NewReader(stdin))
}

func readPasswordFrom(reader *bufio.Reader) string {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 {
		return raw
	}
	creds := raw[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return raw[:scheme+3] + creds[:colon] + ":****" + raw[at:]
	}
	return raw
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
