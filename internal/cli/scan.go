package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/guardian"
	"github.com/gzhole/fortress/internal/policy"
)

var (
	scanUser   string
	scanJSON   bool
	scanStrict bool
)

// errQuarantined makes the process exit non-zero under --strict.
var errQuarantined = errors.New("input quarantined")

var scanCmd = &cobra.Command{
	Use:   "scan [text...]",
	Short: "Scan untrusted input for prompt injection",
	Long: `Scan text for prompt-injection signatures, score it and print the
chosen action. Text is taken from the arguments, or from stdin when it is
piped.

Examples:
  fortress scan "Ignore all previous instructions"
  echo "What is the weather today?" | fortress scan
  fortress scan --user alice --json < message.txt
  fortress scan --strict "..."   # exit 1 when quarantined`,
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().StringVar(&scanUser, "user", "", "User id to attribute the attempt to")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the full analysis result as JSON")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "Exit non-zero when the input is quarantined")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	text, err := inputFrom(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.guardian.ScanInput(cmd.Context(), text, scanUser)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scanJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printAnalysis(out, res)
	}

	if scanStrict && res.Action == policy.ActionQuarantine {
		return errQuarantined
	}
	return nil
}

func printAnalysis(w io.Writer, res guardian.AnalysisResult) {
	fmt.Fprintf(w, "%s %s  (score %.2f)\n", actionIcon(res.Action), res.Action, res.ThreatScore)
	for _, v := range res.Violations {
		fmt.Fprintf(w, "     %-9s %-45s %q\n", v.Severity, v.PatternID, strings.Join(v.MatchedText, " | "))
	}
	switch res.Action {
	case policy.ActionAllow:
	case policy.ActionQuarantine:
		fmt.Fprintln(w, "     Input withheld.")
	default:
		fmt.Fprintf(w, "     Sanitized: %s\n", res.Released())
	}
}

func actionIcon(a policy.Action) string {
	switch a {
	case policy.ActionQuarantine:
		return "\xf0\x9f\x9b\x91" // stop sign
	case policy.ActionSanitizeWarn:
		return "\xe2\x9a\xa0\xef\xb8\x8f " // warning
	case policy.ActionSanitizeLog:
		return "\xf0\x9f\x94\x8d" // magnifying glass
	case policy.ActionAllow:
		return "\xe2\x9c\x85" // check mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}
