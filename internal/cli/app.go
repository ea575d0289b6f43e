package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/gzhole/fortress/internal/config"
	"github.com/gzhole/fortress/internal/guardian"
	"github.com/gzhole/fortress/internal/logger"
	"github.com/gzhole/fortress/internal/policy"
	"github.com/gzhole/fortress/internal/profile"
)

// app bundles everything a command needs, built from config and flags.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	policy   *policy.Policy
	packs    []policy.PackInfo
	guardian *guardian.Guardian
	closers  []func() error
}

func loadConfig() (*config.Config, error) {
	paths := config.DefaultPaths()
	if configPath != "" {
		paths = []string{configPath}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if policyPath != "" {
		cfg.Policy.Path = policyPath
	}
	if auditPath != "" {
		cfg.Audit.Path = auditPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// loadPolicy reads the policy file (built-in default when missing) and
// merges enabled packs.
func loadPolicy(cfg *config.Config) (*policy.Policy, []policy.PackInfo, error) {
	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load policy: %w", err)
	}
	merged, infos, err := policy.LoadPacks(cfg.Policy.PacksDir, pol)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load packs: %w", err)
	}
	return merged, infos, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		log: logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr),
	}

	a.policy, a.packs, err = loadPolicy(cfg)
	if err != nil {
		return nil, err
	}
	for _, p := range a.packs {
		if p.Err != nil {
			a.log.Warn().Err(p.Err).Str("pack", p.Path).Msg("skipping invalid pack")
		}
	}

	sink := logger.MultiSink{logger.ZerologSink{Logger: a.log}}
	if cfg.Audit.Enabled {
		if err := config.EnsureDir(cfg.Audit.Path); err != nil {
			a.log.Warn().Err(err).Str("path", cfg.Audit.Path).Msg("cannot create audit directory")
		} else if audit, err := logger.NewAuditLogger(cfg.Audit.Path); err != nil {
			a.log.Warn().Err(err).Str("path", cfg.Audit.Path).Msg("cannot open audit log")
		} else {
			sink = append(sink, audit)
			a.closers = append(a.closers, audit.Close)
		}
	}

	store, err := newProfileStore(ctx, cfg, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.guardian, err = guardian.New(a.policy,
		guardian.WithLogger(a.log),
		guardian.WithSink(sink),
		guardian.WithProfileStore(store),
		guardian.WithMaxInputBytes(cfg.Scan.MaxInputBytes),
	)
	if err != nil {
		_ = store.Close()
		a.Close()
		return nil, fmt.Errorf("failed to build guardian: %w", err)
	}
	a.closers = append(a.closers, a.guardian.Close)

	return a, nil
}

func newProfileStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (profile.Store, error) {
	switch cfg.Profiles.Backend {
	case config.BackendRedis:
		client, err := profile.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.MaxRetries, log)
		if err != nil {
			return nil, err
		}
		return profile.NewRedisStore(client, cfg.Profiles.TTL), nil
	default:
		return profile.NewMemoryStore(cfg.Profiles.Capacity, cfg.Profiles.TTL), nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

// readInput returns the text to process: the joined arguments, or stdin
// when no arguments are given and stdin is not a terminal.
func readInput(args []string, stdin io.Reader, stdinIsTTY bool) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if stdinIsTTY {
		return "", fmt.Errorf("no input: pass text as arguments or pipe it on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func inputFrom(args []string) (string, error) {
	return readInput(args, os.Stdin, stdinIsTerminal())
}
