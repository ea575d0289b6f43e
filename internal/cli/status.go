package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/config"
	"github.com/gzhole/fortress/internal/policy"
	"github.com/gzhole/fortress/internal/profile"
)

var statusUser string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Fortress status - config, policy, packs, profiles, event log",
	Long: `Check how Fortress is configured: which policy and packs are active,
which threat profile backend is used, and where security events go. With
--user, also print that user's threat profile (meaningful with the redis
backend, since the memory backend lives only as long as one command).

  fortress status
  fortress status --user alice`,
	RunE: statusCommand,
}

func init() {
	statusCmd.Flags().StringVar(&statusUser, "user", "", "Show the threat profile of this user")
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  Fortress Status")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(out, "  Binary:    %s (%s)\n", binPath, Version)
	fmt.Fprintf(out, "  Config:    %s\n", cfg.ConfigDir)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Policy ────────────────────────────────────────────")
	checkPolicyFile(out, cfg.Policy.Path)
	fmt.Fprintf(out, "  Signatures: %d in %d categories\n", a.guardian.Scanner().SignatureCount(), len(a.policy.Categories))
	enabled := 0
	for _, info := range a.packs {
		if info.Enabled && info.Err == nil {
			enabled++
		}
	}
	if len(a.packs) > 0 {
		fmt.Fprintf(out, "  ✅ Packs: %d installed, %d enabled\n", len(a.packs), enabled)
	} else {
		fmt.Fprintln(out, "  ⬚  No signature packs installed")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Threat Profiles ───────────────────────────────────")
	switch cfg.Profiles.Backend {
	case config.BackendRedis:
		fmt.Fprintf(out, "  ✅ redis %s db %d (ttl %s)\n", cfg.Redis.Addr, cfg.Redis.DB, cfg.Profiles.TTL)
	default:
		fmt.Fprintf(out, "  ⬚  memory (capacity %d, ttl %s, per process)\n", cfg.Profiles.Capacity, cfg.Profiles.TTL)
	}
	if statusUser != "" {
		p, err := a.guardian.GetUserThreatProfile(cmd.Context(), statusUser)
		if err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}
		printProfile(out, p)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Security Events ───────────────────────────────────")
	if cfg.Audit.Enabled {
		checkAuditLog(out, cfg.Audit.Path)
	} else {
		fmt.Fprintln(out, "  ⬚  Event log disabled")
	}
	fmt.Fprintln(out)
	return nil
}

func printProfile(w io.Writer, p profile.Profile) {
	fmt.Fprintf(w, "  User %s: risk %s, %d attempts", p.UserID, p.RiskLevel, p.TotalAttempts)
	if !p.LastSeen.IsZero() {
		fmt.Fprintf(w, ", last seen %s", p.LastSeen.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	cats := make([]string, 0, len(p.AttemptsByCategory))
	for c := range p.AttemptsByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(w, "     %-22s %d\n", c, p.AttemptsByCategory[policy.Category(c)])
	}
}

func checkPolicyFile(w io.Writer, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  ✅ Policy: %s\n", path)
	} else {
		fmt.Fprintln(w, "  ⬚  Policy: using built-in defaults (no custom file)")
	}
}

func checkAuditLog(w io.Writer, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(w, "  ⬚  %s (not yet created, starts on first event)\n", path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Fprintf(w, "  ✅ %s (<1 KB)\n", path)
	} else {
		fmt.Fprintf(w, "  ✅ %s (%d KB)\n", path, sizeKB)
	}
}
