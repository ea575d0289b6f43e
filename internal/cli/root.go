package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	configPath string
	policyPath string
	auditPath  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fortress",
	Short: "Fortress - prompt-injection and output-safety scanner",
	Long: `Fortress scans untrusted text for prompt-injection attempts before it
reaches a language model, wraps it in an isolated prompt, and checks model
output for leaked secrets before it reaches the user.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML file (default: ~/.fortress/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "Path to policy YAML file (default: ~/.fortress/policy.yaml, built-in if missing)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit", "", "Path to security event log (default: ~/.fortress/events.jsonl)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command. Errors are already printed by cobra.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
