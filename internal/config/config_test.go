package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFmtConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, warnings, err := LoadFmtConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultFmtConfig(), cfg)
}

func TestLoadFmtConfigReportsUnknownKeysAsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".whisker-fmt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"indent_width": 4, "totally_unknown": true}`), 0o644))

	cfg, warnings, err := LoadFmtConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.IndentWidth)
	assert.Equal(t, []string{"totally_unknown"}, warnings)
}

func TestLoadLintConfigReportsUnknownKeysAsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".whisker-lint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_warnings": 5, "rule_profile": "strict"}`), 0o644))

	cfg, warnings, err := LoadLintConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxWarnings)
	assert.Equal(t, []string{"rule_profile"}, warnings)
}

func TestLoadLintConfigMalformedJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".whisker-lint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, _, err := LoadLintConfig(path)
	assert.Error(t, err)
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "first-wins", cfg.Compile.DuplicatePassagePolicy)
	assert.Equal(t, 50, cfg.Engine.MaxUndoSteps)
	assert.Equal(t, "off", cfg.Engine.AutosavePolicy)
}
