package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate [text...]",
	Short: "Check model output for leaked secrets and role breaks",
	Long: `Validate model output before it is shown to a user. Leaked credentials
are replaced with [REDACTED]; role-break phrases are reported only.

Examples:
  fortress validate "Sure, the api_key: sk-abc123"
  my-llm-client | fortress validate --json`,
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the validation result as JSON")
	rootCmd.AddCommand(validateCmd)
}

func validateCommand(cmd *cobra.Command, args []string) error {
	text, err := inputFrom(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.guardian.ValidateOutput(cmd.Context(), text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if validateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	status := "\xe2\x9c\x85 clean"
	if v.RequiresReview {
		status = "\xe2\x9a\xa0\xef\xb8\x8f  requires review"
	}
	fmt.Fprintf(out, "%s (safe=%v)\n", status, v.IsSafe)
	for _, iss := range v.Issues {
		fmt.Fprintf(out, "     %-19s %-7s %s x%d\n", iss.Type, iss.Severity, iss.MatchedPattern, iss.Matches)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, v.SanitizedOutput)
	return nil
}
