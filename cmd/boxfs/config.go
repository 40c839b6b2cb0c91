package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v2"
)

// Config is the structure of the YAML config file.
type Config struct {
	Backend      string   `yaml:"backend,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Token        *Token   `yaml:"token,omitempty"`
	RootID       string   `yaml:"root_id,omitempty"`
	RootPath     string   `yaml:"root_path,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	BlockSize    int64    `yaml:"block_size,omitempty"`
}

// Token is an OAuth 2.0 token as stored in the config file.
type Token struct {
	AccessToken  string    `yaml:"access_token"`
	TokenType    string    `yaml:"token_type,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	Expiry       time.Time `yaml:"expiry"`
}

func newToken(t *oauth2.Token) *Token {
	if t == nil {
		return nil
	}
	return &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// loadConfig reads the config file at path. A missing file yields an empty config.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func saveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// override replaces the fields of cfg whose flags were set on the command line.
func (cfg Config) override(flags *pflag.FlagSet, set Config) Config {
	if flags.Changed("backend") {
		cfg.Backend = set.Backend
	}
	if flags.Changed("root-id") {
		cfg.RootID = set.RootID
	}
	if flags.Changed("root-path") {
		cfg.RootPath = set.RootPath
	}
	if flags.Changed("scope") {
		cfg.Scopes = set.Scopes
	}
	if flags.Changed("block-size") {
		cfg.BlockSize = set.BlockSize
	}
	return cfg
}
