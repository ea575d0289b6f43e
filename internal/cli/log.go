package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/logger"
)

type eventFilter struct {
	kind   string
	user   string
	action string
	last   int
}

var (
	logFilter  eventFilter
	logSummary bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the security event log",
	Long: `View the Fortress security event log with filtering and summary options.

Examples:
  fortress log                          # Show all events
  fortress log --last 20                # Show last 20 events
  fortress log --kind suspicious_activity
  fortress log --user alice --action QUARANTINE
  fortress log --summary                # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilter.kind, "kind", "", "Filter by event kind (suspicious_activity, potential_injection, output_leak)")
	logCmd.Flags().StringVar(&logFilter.user, "user", "", "Filter by user id")
	logCmd.Flags().StringVar(&logFilter.action, "action", "", "Filter by action (SANITIZE_WARN, QUARANTINE, ...)")
	logCmd.Flags().IntVar(&logFilter.last, "last", 0, "Show last N events")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	events, err := logger.ReadEvents(cfg.Audit.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No security events found.")
		return nil
	}

	if logSummary {
		printSummary(out, events)
		return nil
	}
	printEvents(out, filterEvents(events, logFilter))
	return nil
}

func filterEvents(events []logger.SecurityEvent, f eventFilter) []logger.SecurityEvent {
	var filtered []logger.SecurityEvent
	for _, e := range events {
		if f.kind != "" && !strings.EqualFold(string(e.Kind), f.kind) {
			continue
		}
		if f.user != "" && e.UserID != f.user {
			continue
		}
		if f.action != "" && !strings.EqualFold(e.Action, f.action) {
			continue
		}
		filtered = append(filtered, e)
	}
	if f.last > 0 && f.last < len(filtered) {
		filtered = filtered[len(filtered)-f.last:]
	}
	return filtered
}

func printEvents(w io.Writer, events []logger.SecurityEvent) {
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %s", kindIcon(e.Kind), formatTimestamp(e.Timestamp), e.Kind)
		if e.Action != "" {
			fmt.Fprintf(w, " [%s %.2f]", e.Action, e.ThreatScore)
		}
		fmt.Fprintln(w)

		if e.UserID != "" {
			fmt.Fprintf(w, "     User: %s\n", e.UserID)
		}
		for _, f := range e.Findings {
			fmt.Fprintf(w, "     %s/%s (%s) x%d\n", f.Category, f.PatternID, f.Severity, f.Matches)
		}
		if e.Note != "" {
			fmt.Fprintf(w, "     Note: %s\n", e.Note)
		}
		if e.ContentHash != "" {
			fmt.Fprintf(w, "     sha256: %s\n", e.ContentHash)
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, events []logger.SecurityEvent) {
	kinds := map[logger.EventKind]int{}
	users := map[string]int{}
	patterns := map[string]int{}
	for _, e := range events {
		kinds[e.Kind]++
		if e.UserID != "" {
			users[e.UserID]++
		}
		for _, f := range e.Findings {
			patterns[f.PatternID]++
		}
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  Fortress Security Event Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total events:         %d\n", len(events))
	fmt.Fprintf(w, "  suspicious_activity:  %d\n", kinds[logger.EventSuspiciousActivity])
	fmt.Fprintf(w, "  potential_injection:  %d\n", kinds[logger.EventPotentialInjection])
	fmt.Fprintf(w, "  output_leak:          %d\n", kinds[logger.EventOutputLeak])
	fmt.Fprintf(w, "  Distinct users:       %d\n", len(users))
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  First event:  %s\n", formatTimestamp(events[0].Timestamp))
	fmt.Fprintf(w, "  Last event:   %s\n", formatTimestamp(events[len(events)-1].Timestamp))

	if len(patterns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Top patterns:")
		for _, p := range topN(patterns, 10) {
			fmt.Fprintf(w, "    %4d  %s\n", patterns[p], p)
		}
	}
	fmt.Fprintln(w)
}

// topN returns up to n keys ordered by count, then name.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func kindIcon(kind logger.EventKind) string {
	switch kind {
	case logger.EventSuspiciousActivity:
		return "\xf0\x9f\x9b\x91" // stop sign
	case logger.EventPotentialInjection:
		return "\xe2\x9a\xa0\xef\xb8\x8f " // warning
	case logger.EventOutputLeak:
		return "\xf0\x9f\x94\x91" // key
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
