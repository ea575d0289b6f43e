package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is a signature pack: extra categories and output rules layered on
// top of the base policy. Packs cannot change thresholds.
// We avoid yaml:",inline" because Policy also has a `version` field.
type Pack struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	PackVersion string          `yaml:"version"`
	Author      string          `yaml:"author"`
	Categories  []CategoryRules `yaml:"categories"`
	Output      OutputRules     `yaml:"output"`
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name           string
	Description    string
	Version        string
	Author         string
	Enabled        bool
	Path           string
	SignatureCount int
	Err            error
}

// LoadPacks reads all .yaml files from the packs directory in name order
// and merges them into the base policy. Signatures for an existing category
// are appended after the base signatures; new categories are evaluated after
// all base categories. Files prefixed with "_" are listed but not merged.
// A pack that fails to parse is reported in its PackInfo and skipped; a
// merged policy that fails validation is an error.
func LoadPacks(packsDir string, base *Policy) (*Policy, []PackInfo, error) {
	var infos []PackInfo

	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	result := base
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())

		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{
				Name:    baseName,
				Enabled: enabled,
				Path:    path,
				Err:     err,
			})
			continue
		}

		info := PackInfo{
			Name:           pack.Name,
			Description:    pack.Description,
			Version:        pack.PackVersion,
			Author:         pack.Author,
			Enabled:        enabled,
			Path:           path,
			SignatureCount: pack.signatureCount(),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if !enabled {
			continue
		}

		result = result.merge(&Policy{Categories: pack.Categories, Output: pack.Output})
	}

	if err := result.Validate(); err != nil {
		return nil, infos, fmt.Errorf("merging packs from %s: %w", packsDir, err)
	}
	return result, infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}

	return &pack, nil
}

func (p *Pack) signatureCount() int {
	n := len(p.Output.Sensitive.Rules) + len(p.Output.RoleBreak.Rules)
	for _, c := range p.Categories {
		n += len(c.Signatures)
	}
	return n
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
