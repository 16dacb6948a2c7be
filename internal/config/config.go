// Package config reads and writes .rvs/config, an INI file shaped like
// Git's own repository config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// Core mirrors Git's [core] section.
type Core struct {
	RepositoryFormatVersion int
	FileMode                bool
	Bare                    bool
	LogAllRefUpdates        bool
}

// User mirrors an optional [user] section, seeded from RVS_* env vars
// when absent.
type User struct {
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
}

type Config struct {
	Core Core
	User User
}

// Default returns the config written by `rvs init`.
func Default() *Config {
	return &Config{
		Core: Core{
			RepositoryFormatVersion: 0,
			FileMode:                true,
			Bare:                    false,
			LogAllRefUpdates:        true,
		},
	}
}

// Load reads .rvs/config. A missing file yields Default() with no error.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := Default()
	core := f.Section("core")
	cfg.Core.RepositoryFormatVersion = core.Key("repositoryformatversion").MustInt(0)
	cfg.Core.FileMode = core.Key("filemode").MustBool(true)
	cfg.Core.Bare = core.Key("bare").MustBool(false)
	cfg.Core.LogAllRefUpdates = core.Key("logallrefupdates").MustBool(true)

	user := f.Section("user")
	cfg.User.AuthorName = user.Key("name").String()
	cfg.User.AuthorEmail = user.Key("email").String()
	cfg.User.CommitterName = user.Key("name").String()
	cfg.User.CommitterEmail = user.Key("email").String()

	return cfg, nil
}

// Save atomically writes cfg to path in Git's INI shape.
func Save(path string, cfg *Config) error {
	f := ini.Empty()

	core, err := f.NewSection("core")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	core.Key("repositoryformatversion").SetValue(fmt.Sprintf("%d", cfg.Core.RepositoryFormatVersion))
	core.Key("filemode").SetValue(boolStr(cfg.Core.FileMode))
	core.Key("bare").SetValue(boolStr(cfg.Core.Bare))
	core.Key("logallrefupdates").SetValue(boolStr(cfg.Core.LogAllRefUpdates))

	if cfg.User.AuthorName != "" || cfg.User.AuthorEmail != "" {
		user, err := f.NewSection("user")
		if err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		if cfg.User.AuthorName != "" {
			user.Key("name").SetValue(cfg.User.AuthorName)
		}
		if cfg.User.AuthorEmail != "" {
			user.Key("email").SetValue(cfg.User.AuthorEmail)
		}
	}

	tmp, err := os.CreateTemp(dirOf(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("save config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save config: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// EnvOverride applies RVS_AUTHOR_*/RVS_COMMITTER_* environment variables
// over whatever the config file holds, matching Git's env-over-config
// precedence.
func (c *Config) EnvOverride(getenv func(string) string) {
	if v := getenv("RVS_AUTHOR_NAME"); v != "" {
		c.User.AuthorName = v
	}
	if v := getenv("RVS_AUTHOR_EMAIL"); v != "" {
		c.User.AuthorEmail = v
	}
	if v := getenv("RVS_COMMITTER_NAME"); v != "" {
		c.User.CommitterName = v
	}
	if v := getenv("RVS_COMMITTER_EMAIL"); v != "" {
		c.User.CommitterEmail = v
	}
}
