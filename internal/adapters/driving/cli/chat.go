package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui"
)

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Launch the interactive chat UI",
	Long: `Launch the interactive terminal UI for asking questions about a PDF.

With a file argument the PDF becomes the active document; otherwise the
document from the last upload is used.

Controls:
  Enter    - Ask the typed question
  Ctrl+P   - Process the active document
  Ctrl+L   - Clear the chat history
  Ctrl+R   - Forget the active document
  PgUp/Dn  - Scroll the transcript
  F1       - Toggle help
  Ctrl+C   - Quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// Recover panics so the terminal is left usable with a stack trace.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if _, err := svc.Session.Open(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
	}

	app, err := tui.NewApp(tui.NewPorts(svc.Session))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
