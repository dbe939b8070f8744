package repo

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

func (r *Repo) configPath() string {
	return filepath.Join(r.StrataDir, "config")
}

func (r *Repo) loadConfig() (*ini.File, error) {
	cfg, err := ini.LooseLoad(r.configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// ConfigGet returns the config value for a dotted key such as "user.name"
// or "commit.signingkey". Missing keys return an empty string and no error.
func (r *Repo) ConfigGet(key string) (string, error) {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return "", err
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return "", err
	}
	sec := cfg.Section(section)
	if !sec.HasKey(name) {
		return "", nil
	}
	return sec.Key(name).String(), nil
}

// ConfigSet writes a config value for a dotted key and saves the file.
func (r *Repo) ConfigSet(key, value string) error {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}
	cfg.Section(section).Key(name).SetValue(value)
	if err := cfg.SaveTo(r.configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// ConfigUnset removes a key from the config file. Removing a key that does
// not exist is not an error.
func (r *Repo) ConfigUnset(key string) error {
	section, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}
	cfg.Section(section).DeleteKey(name)
	if err := cfg.SaveTo(r.configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// ConfigList returns all configured keys as "section.key" → value.
func (r *Repo) ConfigList() (map[string]string, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		for _, k := range sec.Keys() {
			out[sec.Name()+"."+k.Name()] = k.String()
		}
	}
	return out, nil
}

// DefaultAuthor builds an author string from user.name and user.email.
// Returns an error if user.name is not configured.
func (r *Repo) DefaultAuthor() (string, error) {
	name, err := r.ConfigGet("user.name")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("user.name is not configured")
	}
	email, err := r.ConfigGet("user.email")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(email) == "" {
		return name, nil
	}
	return fmt.Sprintf("%s <%s>", name, email), nil
}

// SigningKeyPath returns the configured commit.signingkey path, expanded
// relative to the repository root when not absolute. Empty when unset.
func (r *Repo) SigningKeyPath() (string, error) {
	keyPath, err := r.ConfigGet("commit.signingkey")
	if err != nil {
		return "", err
	}
	keyPath = strings.TrimSpace(keyPath)
	if keyPath == "" || filepath.IsAbs(keyPath) {
		return keyPath, nil
	}
	return filepath.Join(r.RootDir, keyPath), nil
}

func splitConfigKey(key string) (section, name string, err error) {
	key = strings.TrimSpace(key)
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("invalid config key %q (want section.key)", key)
	}
	return key[:idx], key[idx+1:], nil
}
