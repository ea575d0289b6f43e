package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/policy"
)

var signaturesVerbose bool

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "List the loaded signature table and packs",
	Long: `Show the categories, signatures and output rules of the effective
policy: the policy file (or the built-in default) merged with enabled packs
from ~/.fortress/packs/.

Examples:
  fortress signatures
  fortress signatures -v          # include patterns`,
	RunE: signaturesCommand,
}

func init() {
	signaturesCmd.Flags().BoolVarP(&signaturesVerbose, "verbose", "v", false, "Show the regular expression of every signature")
	rootCmd.AddCommand(signaturesCmd)
}

func signaturesCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pol, packs, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	t := pol.Thresholds
	fmt.Fprintf(out, "Thresholds: log > %.2f, warn > %.2f, quarantine > %.2f\n\n", t.Log, t.Warn, t.Quarantine)

	total := 0
	for _, c := range pol.Categories {
		mode := ""
		if c.Multiline {
			mode = " [multiline]"
		}
		fmt.Fprintf(out, "%s (%s)%s\n", c.Name, c.Severity, mode)
		for _, s := range c.Signatures {
			printSignature(out, s)
			total++
		}
		fmt.Fprintln(out)
	}

	families := []struct {
		name string
		fam  policy.OutputFamily
	}{
		{"output: sensitive", pol.Output.Sensitive},
		{"output: role_break", pol.Output.RoleBreak},
	}
	for _, f := range families {
		fmt.Fprintf(out, "%s (%s)\n", f.name, f.fam.Severity)
		for _, s := range f.fam.Rules {
			printSignature(out, s)
			total++
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d categories, %d rules\n", len(pol.Categories), total)
	printPacks(out, packs)
	return nil
}

func printSignature(w io.Writer, s policy.Signature) {
	if s.Description != "" {
		fmt.Fprintf(w, "  %-45s %s\n", s.ID, s.Description)
	} else {
		fmt.Fprintf(w, "  %s\n", s.ID)
	}
	if signaturesVerbose {
		fmt.Fprintf(w, "      %s\n", s.Pattern)
		if s.Exclude != "" {
			fmt.Fprintf(w, "      except %s\n", s.Exclude)
		}
	}
}

func printPacks(w io.Writer, packs []policy.PackInfo) {
	if len(packs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Packs:")
	for _, p := range packs {
		status := "\xe2\x9c\x85 enabled " // check mark
		switch {
		case p.Err != nil:
			status = "\xe2\x9d\x8c invalid " // cross mark
		case !p.Enabled:
			status = "\xe2\x8f\xb8\xef\xb8\x8f  disabled" // pause
		}
		fmt.Fprintf(w, "  %s  %-24s %3d rules  %s\n", status, p.Name, p.SignatureCount, p.Description)
		if p.Err != nil {
			fmt.Fprintf(w, "       %v\n", p.Err)
		}
	}
}
