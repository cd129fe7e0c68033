package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
)

// ProfileConfig 描述界面版本（profile）的来源。
type ProfileConfig struct {
	DefaultID string
	File      string
	Extra     []profile.Profile
}

type profileFile struct {
	Default  string            `toml:"default"`
	Profiles []profile.Profile `toml:"profile"`
}

// Profiles 返回内置版本与文件中定义的版本，文件中的同名版本覆盖内置版本。
func (c ProfileConfig) Profiles() []profile.Profile {
	return append(profile.Seed(), c.Extra...)
}

func loadProfileConfig() (ProfileConfig, error) {
	cfg := ProfileConfig{
		DefaultID: strings.TrimSpace(os.Getenv("DEFAULT_PROFILE")),
		File:      strings.TrimSpace(os.Getenv("PROFILE_FILE")),
	}

	if cfg.File != "" {
		parsed, err := decodeProfileFile(cfg.File)
		if err != nil {
			return ProfileConfig{}, err
		}
		cfg.Extra = parsed.Profiles
		if cfg.DefaultID == "" {
			cfg.DefaultID = strings.TrimSpace(parsed.Default)
		}
	}

	if cfg.DefaultID == "" {
		cfg.DefaultID = "v1"
	}
	return cfg, nil
}

func decodeProfileFile(path string) (profileFile, error) {
	var parsed profileFile
	meta, err := toml.DecodeFile(path, &parsed)
	if err != nil {
		return profileFile{}, fmt.Errorf("failed to decode PROFILE_FILE %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return profileFile{}, fmt.Errorf("unknown keys in PROFILE_FILE %s: %v", path, undecoded)
	}

	for i, p := range parsed.Profiles {
		if strings.TrimSpace(p.ID) == "" {
			return profileFile{}, fmt.Errorf("profile #%d in %s has no id", i+1, path)
		}
	}
	return parsed, nil
}
