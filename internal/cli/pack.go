package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/fortress/internal/policy"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage signature packs",
	Long: `Manage Fortress signature packs.

A pack is a YAML file of extra categories and output rules stored in
~/.fortress/packs/ and merged after the base policy. A file whose name
starts with "_" is installed but disabled.

Examples:
  fortress pack list
  fortress pack enable jailbreak-extra
  fortress pack disable jailbreak-extra
  fortress pack show jailbreak-extra`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Print a pack file",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd, packEnableCmd, packDisableCmd, packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.Policy.PacksDir, 0700); err != nil {
		return "", err
	}
	return cfg.Policy.PacksDir, nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Listing only: merge errors are reported per pack below.
	_, infos, _ := policy.LoadPacks(dir, policy.DefaultPolicy())
	if len(infos) == 0 {
		fmt.Fprintln(out, "No signature packs installed.")
		fmt.Fprintf(out, "\nTo install packs, copy YAML files to: %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Installed Signature Packs:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	printPacks(out, infos)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\nPacks directory: %s\n", dir)
	return nil
}

// packPaths returns the enabled and disabled file names for a pack.
func packPaths(dir, name string) (enabled, disabled string, err error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, "_") || name == "." || name == ".." {
		return "", "", fmt.Errorf("invalid pack name %q", name)
	}
	return filepath.Join(dir, name+".yaml"), filepath.Join(dir, "_"+name+".yaml"), nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	name := args[0]
	enabledPath, disabledPath, err := packPaths(dir, name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(disabledPath); err == nil {
		if err := os.Rename(disabledPath, enabledPath); err != nil {
			return fmt.Errorf("failed to enable pack: %w", err)
		}
		fmt.Fprintf(out, "\xe2\x9c\x85 Pack '%s' enabled.\n", name)
		return nil
	}
	if _, err := os.Stat(enabledPath); err == nil {
		fmt.Fprintf(out, "Pack '%s' is already enabled.\n", name)
		return nil
	}
	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packDisable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	name := args[0]
	enabledPath, disabledPath, err := packPaths(dir, name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(enabledPath); err == nil {
		if err := os.Rename(enabledPath, disabledPath); err != nil {
			return fmt.Errorf("failed to disable pack: %w", err)
		}
		fmt.Fprintf(out, "\xe2\x9d\x8c Pack '%s' disabled.\n", name)
		return nil
	}
	if _, err := os.Stat(disabledPath); err == nil {
		fmt.Fprintf(out, "Pack '%s' is already disabled.\n", name)
		return nil
	}
	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	enabledPath, disabledPath, err := packPaths(dir, args[0])
	if err != nil {
		return err
	}

	path := enabledPath
	if _, err := os.Stat(path); err != nil {
		path = disabledPath
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack '%s' not found in %s", args[0], dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
