// Package config defines Whisker's layered JSON configuration: a compile
// block (duplicate-passage policy, passage limits), an engine block
// (undo depth, execution budget, autosave policy), and the two on-disk
// config files spec §6 names, `.whisker-fmt.json` and `.whisker-lint.json`.
// JSON is used because the spec fixes the file format as JSON, not
// because the teacher's own config layer (YAML-backed) was copied as-is.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

// CompileConfig controls semantic analysis per spec §4.4/§9 open question (a).
type CompileConfig struct {
	DuplicatePassagePolicy string `json:"duplicate_passage_policy"` // "first-wins" | "last-wins" | "reject"
	MaxPassageLength       int    `json:"max_passage_length"`
	MaxChoicesPerPassage   int    `json:"max_choices_per_passage"`
}

// EngineConfig controls runtime engine behavior per spec §4.8.
type EngineConfig struct {
	MaxUndoSteps      int    `json:"max_undo_steps"`
	MaxInstructions   int    `json:"max_instructions"`
	MaxExecutionTimeMs int   `json:"max_execution_time_ms"`
	AutosavePolicy    string `json:"autosave_policy"` // "off" | "per-choice" | "per-passage"
}

// Config is the top-level, process-wide configuration block.
type Config struct {
	Compile CompileConfig `json:"compile"`
	Engine  EngineConfig  `json:"engine"`
}

// DefaultConfig returns Whisker's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Compile: CompileConfig{
			DuplicatePassagePolicy: "first-wins",
			MaxPassageLength:       200,
			MaxChoicesPerPassage:   20,
		},
		Engine: EngineConfig{
			MaxUndoSteps:       50,
			MaxInstructions:    1_000_000,
			MaxExecutionTimeMs: 5000,
			AutosavePolicy:     "off",
		},
	}
}

// FmtConfig is `.whisker-fmt.json`'s shape.
type FmtConfig struct {
	IndentWidth   int  `json:"indent_width"`
	UseTabs       bool `json:"use_tabs"`
	TrailingSpace bool `json:"trailing_space"`
}

// DefaultFmtConfig returns whisker-fmt's defaults.
func DefaultFmtConfig() *FmtConfig {
	return &FmtConfig{IndentWidth: 2, UseTabs: false, TrailingSpace: false}
}

// LintConfig is `.whisker-lint.json`'s shape.
type LintConfig struct {
	DisabledRules []string `json:"disabled_rules"`
	MaxWarnings   int      `json:"max_warnings"`
}

// DefaultLintConfig returns whisker-lint's defaults.
func DefaultLintConfig() *LintConfig {
	return &LintConfig{MaxWarnings: 0}
}

// LoadFmtConfig reads path into a FmtConfig, starting from
// DefaultFmtConfig so omitted fields keep their defaults, and returns any
// keys present in the file that the struct doesn't recognize, reported as
// warnings rather than as a hard failure (spec §6: "unknown keys are
// reported as warnings").
func LoadFmtConfig(path string) (*FmtConfig, []string, error) {
	cfg := DefaultFmtConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil, nil
		}
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("config: %s: %w", path, err)
	}
	unknown, err := unknownKeys(data, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, unknown, nil
}

// LoadLintConfig reads path into a LintConfig with the same unknown-key
// warning behavior as LoadFmtConfig.
func LoadLintConfig(path string) (*LintConfig, []string, error) {
	cfg := DefaultLintConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil, nil
		}
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("config: %s: %w", path, err)
	}
	unknown, err := unknownKeys(data, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, unknown, nil
}

// unknownKeys reports which top-level keys in data have no corresponding
// json tag on the fields of v's underlying struct type.
func unknownKeys(data []byte, v interface{}) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	known := make(map[string]bool)
	t := reflect.TypeOf(v).Elem()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		known[tag] = true
	}
	var unknown []string
	for key := range raw {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	return unknown, nil
}
