package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/isolate"
)

var (
	isolateSystem     string
	isolateSystemFile string
	isolateTurns      []string
	isolateJSON       bool
)

var isolateCmd = &cobra.Command{
	Use:   "isolate [text...]",
	Short: "Render untrusted input into an isolated prompt",
	Long: `Build the prompt sent to the model: system instructions, immutable
security directives, numbered prior turns and the untrusted input in a
delimited data section.

Examples:
  fortress isolate --system "You are a support bot." "How do I reset my password?"
  fortress isolate --system-file system.txt --turn "user: hi" --turn "assistant: hello" < input.txt`,
	RunE: isolateCommand,
}

func init() {
	isolateCmd.Flags().StringVar(&isolateSystem, "system", "", "System prompt text")
	isolateCmd.Flags().StringVar(&isolateSystemFile, "system-file", "", "Read the system prompt from a file")
	isolateCmd.Flags().StringArrayVar(&isolateTurns, "turn", nil, "Prior conversation turn (repeatable, in order)")
	isolateCmd.Flags().BoolVar(&isolateJSON, "json", false, "Print the isolated context as JSON")
	rootCmd.AddCommand(isolateCmd)
}

func isolateCommand(cmd *cobra.Command, args []string) error {
	text, err := inputFrom(args)
	if err != nil {
		return err
	}

	system := isolateSystem
	if isolateSystemFile != "" {
		data, err := os.ReadFile(isolateSystemFile)
		if err != nil {
			return fmt.Errorf("reading system prompt: %w", err)
		}
		system = string(data)
	}

	// Rendering needs no policy or stores.
	ctx := isolate.New().Isolate(system, isolateTurns, text)

	out := cmd.OutOrStdout()
	if isolateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ctx)
	}
	fmt.Fprint(out, ctx.RenderedPrompt)
	fmt.Fprintf(out, "\n# sha256: %s\n", ctx.ContentHash)
	return nil
}
