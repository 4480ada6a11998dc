// Package cli implements the pdfqa command line interface.
// It is a driving adapter: commands translate flags and arguments into
// calls on the core services.
package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// verbose enables debug logging for every command.
var verbose bool

// ErrServicesNotConfigured is returned when a command needs the pipeline but
// no service factory was installed.
var ErrServicesNotConfigured = errors.New("services not configured")

// Services are the core services that most commands run against.
type Services struct {
	Pipeline driving.PipelineService
	Session  driving.SessionService

	// Close releases connections held by the services. May be nil.
	Close func()
}

// ServiceFactory builds Services on first use. It is only called by commands
// that need the AI providers, so settings and version work offline.
type ServiceFactory func(ctx context.Context) (*Services, error)

var (
	settingsService driving.SettingsService
	serviceFactory  ServiceFactory

	servicesOnce sync.Once
	services     *Services
	servicesErr  error
)

var rootCmd = &cobra.Command{
	Use:   "pdfqa",
	Short: "Ask questions about PDF documents",
	Long: `pdfqa indexes PDF documents into a vector store and answers questions
about them with a language model, citing the passages it used.

Run 'pdfqa serve' for the HTTP API, 'pdfqa chat' for the terminal UI,
or 'pdfqa mcp serve' to expose the tools to an AI assistant.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by 'pdfqa version'.
func SetVersion(v string) {
	version = v
}

// SetSettingsService sets the settings service used by the settings commands.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// SetServiceFactory installs the factory that builds the pipeline and session.
func SetServiceFactory(f ServiceFactory) {
	serviceFactory = f
	servicesOnce = sync.Once{}
	services = nil
	servicesErr = nil
}

// getServices builds the services once per process.
func getServices(ctx context.Context) (*Services, error) {
	if serviceFactory == nil {
		return nil, ErrServicesNotConfigured
	}
	servicesOnce.Do(func() {
		services, servicesErr = serviceFactory(ctx)
	})
	return services, servicesErr
}

func closeServices() {
	if services != nil && services.Close != nil {
		services.Close()
	}
}
