package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON HTTP API used by the web front end.

Routes:
  POST /upload            upload a PDF (multipart field "file")
  POST /process-pdf       index the active document
  POST /ask               answer {"question": "..."}
  GET  /get-chat-history  chat history of the active document
  GET  /view-pdf          the active PDF
  POST /clear-chat        clear the chat history
  POST /reset             forget the active document

The listen address defaults to server.addr from the settings.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from settings)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	if addr == "" {
		addr = settings.Server.Addr
	}

	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	server, err := web.NewServer(svc.Session, web.WithMaxUploadBytes(settings.Server.MaxUploadBytes))
	if err != nil {
		return err
	}

	if addr == "" {
		addr = web.DefaultAddr
	}
	cmd.Printf("pdfqa listening on http://%s\n", addr)
	return server.Run(cmd.Context(), addr)
}
