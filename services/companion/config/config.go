// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the companion service configuration: defaults,
// overlaid by an optional YAML file, overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ani-companion/services/bandit"
	"github.com/AleutianAI/ani-companion/services/companion/prompt"
)

// Environment variable overrides.
const (
	EnvConfigPath = "COMPANION_CONFIG"
	EnvPort       = "COMPANION_PORT"
	EnvStatePath  = "COMPANION_STATE_PATH"
	EnvDataDir    = "COMPANION_DATA_DIR"
	EnvLLMBackend = "LLM_BACKEND_TYPE"
	EnvModel      = "OPENAI_MODEL"
)

var configValidate = validator.New()

// BanditConfig configures the tone selector. Arms default to the built-in
// tone identifiers; arbitrary arm labels are allowed as long as the prompt
// layer can fall back for unknown ones.
type BanditConfig struct {
	Arms  []string `yaml:"arms" validate:"required,min=1,dive,required"`
	Alpha float64  `yaml:"alpha" validate:"gte=0"`
}

// LLMConfig selects the reply backend. "stub" serves deterministic replies
// without any network calls.
type LLMConfig struct {
	Backend string `yaml:"backend" validate:"oneof=openai stub"`
	Model   string `yaml:"model"`
}

// Config is the full service configuration.
type Config struct {
	Port      string       `yaml:"port" validate:"required"`
	StatePath string       `yaml:"state_path" validate:"required"`
	DataDir   string       `yaml:"data_dir" validate:"required"`
	Bandit    BanditConfig `yaml:"bandit"`
	LLM       LLMConfig    `yaml:"llm"`
}

// Default returns the configuration used when no file and no overrides are
// present.
func Default() Config {
	return Config{
		Port:      "12310",
		StatePath: "state.json",
		DataDir:   "data",
		Bandit: BanditConfig{
			Arms:  prompt.Tones(),
			Alpha: bandit.DefaultAlpha,
		},
		LLM: LLMConfig{
			Backend: "openai",
			Model:   "gpt-4o-mini",
		},
	}
}

// Load builds the effective configuration.
//
// Inputs:
//   - path: YAML file location. Empty falls back to EnvConfigPath; a missing
//     file is not an error, defaults apply.
//
// Outputs:
//   - Config: Validated configuration.
//   - error: Unreadable/unparseable file or failed validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to defaults + env.
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := configValidate.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv(EnvStatePath); v != "" {
		cfg.StatePath = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLLMBackend); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.LLM.Model = v
	}
}
