package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

var (
	processJSON bool
	askJSON     bool
	historyJSON bool
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Index a PDF for question answering",
	Long: `Extracts the text of a PDF, splits it into chunks, embeds them and writes
them to a per-document index. The file becomes the active document.

A document whose bytes were indexed before reuses the existing index.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var askCmd = &cobra.Command{
	Use:   "ask [file|hash] [question]",
	Short: "Ask a question about a processed PDF",
	Long: `Retrieves the passages most relevant to the question and generates an
answer from them. The document is named by its path or by the 8 character
hash printed by 'pdfqa process'.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status [file|hash]",
	Short: "Report whether a PDF has been processed",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the chat history of the active document",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the active document and clear the chat history",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "output result as JSON")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answer as JSON")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output history as JSON")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	doc, err := svc.Session.Open(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}

	result, err := svc.Session.Process(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", doc.Name, err)
	}

	if processJSON {
		return outputJSON(cmd, result)
	}

	if result.IsExisting {
		cmd.Printf("%s already processed. Using the existing index.\n", doc.Name)
	} else {
		cmd.Printf("Processed %s: created %d document chunks.\n", doc.Name, result.ChunkCount)
	}
	cmd.Printf("  Hash:  %s\n", result.Hash)
	if result.IndexName != "" {
		cmd.Printf("  Index: %s\n", result.IndexName)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	hash, err := resolveHash(args[0])
	if err != nil {
		return err
	}

	question := strings.TrimSpace(args[1])
	answer, err := svc.Pipeline.Answer(cmd.Context(), hash, question)
	if errors.Is(err, domain.ErrNotProcessed) {
		return fmt.Errorf("%w. Run 'pdfqa process' first", err)
	}
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	if askJSON {
		return outputJSON(cmd, answer)
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, src := range answer.Sources {
			cmd.Printf("  [%d]%s %s\n", i+1, pageLabel(src), src.Content)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	hash, err := resolveHash(args[0])
	if err != nil {
		return err
	}

	if svc.Pipeline.IsProcessed(cmd.Context(), hash) {
		cmd.Printf("%s: processed\n", hash)
	} else {
		cmd.Printf("%s: not processed\n", hash)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	entries, err := svc.Session.History(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if historyJSON {
		return outputJSON(cmd, entries)
	}

	if len(entries) == 0 {
		cmd.Println("No chat history.")
		return nil
	}

	for i := range entries {
		e := &entries[i]
		cmd.Printf("[%s] Q: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Question)
		cmd.Printf("A: %s (%.2fs)\n\n", e.Answer, e.ResponseTime)
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	if err := svc.Session.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	cmd.Println("Session cleared.")
	return nil
}

// resolveHash accepts either a path to a PDF or a document hash.
func resolveHash(target string) (domain.DocumentHash, error) {
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return domain.HashFile(target)
	}

	hash := domain.DocumentHash(strings.ToLower(target))
	if err := hash.Validate(); err != nil {
		return "", fmt.Errorf("%q is neither a file nor a document hash: %w", target, err)
	}
	return hash, nil
}

func pageLabel(src domain.Source) string {
	if page, ok := src.Metadata["page"]; ok {
		return fmt.Sprintf(" (p.%v)", page)
	}
	return ""
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
