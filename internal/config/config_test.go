// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lerit/internal/cloud"
	"github.com/jeranaias/lerit/internal/ollama"
	"github.com/jeranaias/lerit/internal/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValidAfterFinalize(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, KindRaw, cfg.Transport.Kind)
	assert.Equal(t, transport.DefaultURL, cfg.Transport.URL)
	assert.Equal(t, "supersede", cfg.Engine.BusyPolicy)
	assert.Equal(t, 30, cfg.UI.MaxFPS)
	assert.NotEmpty(t, cfg.Log.File)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.toml", `
[transport]
kind = "ollama"
model = "qwen2.5:7b"
connect_timeout = "3s"

[engine]
busy_policy = "reject"

[ui]
max_fps = 60
markdown = false

[stub]
token_delay = "5ms"
reply = "canned"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, KindOllama, cfg.Transport.Kind)
	assert.Equal(t, ollama.DefaultBaseURL, cfg.Transport.URL)
	assert.Equal(t, "qwen2.5:7b", cfg.Transport.Model)
	assert.Equal(t, 3*time.Second, cfg.Transport.ConnectTimeout)
	assert.Equal(t, "reject", cfg.Engine.BusyPolicy)
	assert.Equal(t, 60, cfg.UI.MaxFPS)
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, 5*time.Millisecond, cfg.Stub.TokenDelay)
	assert.Equal(t, "canned", cfg.Stub.Reply)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:3000", cfg.Stub.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "new.toml"))
	require.NoError(t, err)
	assert.Equal(t, KindRaw, cfg.Transport.Kind)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.toml", "[transport]\nkindd = \"raw\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport.kindd")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.toml", "[transport]\nkind = \"raw\"\nmodel = \"file\"\n")
	t.Setenv("LERIT_TRANSPORT", "openai")
	t.Setenv("LERIT_MODEL", "env-model")
	t.Setenv("LERIT_LOG_LEVEL", "debug")
	t.Setenv("LERIT_STUB_TOKEN_DELAY", "1ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, cfg.Transport.Kind)
	assert.Equal(t, cloud.DefaultBaseURL, cfg.Transport.URL)
	assert.Equal(t, "env-model", cfg.Transport.Model)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Millisecond, cfg.Stub.TokenDelay)
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("LERIT_MAX_FPS", "fast")
	cfg := Default()
	assert.Error(t, cfg.ApplyEnvOverrides())
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "LERIT_TEST_DOTENV=from-file\nLERIT_TEST_PRESET=from-file\n")
	t.Setenv("LERIT_TEST_PRESET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("LERIT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LERIT_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("LERIT_TEST_PRESET"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Transport.Kind = "grpc"
	cfg.Transport.URL = "localhost:3000"
	cfg.Engine.BusyPolicy = "queue"
	cfg.UI.MaxFPS = 1000
	cfg.UI.Theme = "neon"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Stub.TokenDelay = -time.Second

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{
		"transport.kind", "transport.url", "engine.busy_policy", "ui.max_fps",
		"ui.theme", "log.level", "log.format", "stub.token_delay",
	}, fields)
}

func TestSaveAndReload(t *testing.T) {
	cfg := Default()
	cfg.Transport.Kind = KindOpenAI
	cfg.Transport.Model = "local"
	cfg.Stub.Reply = "hello there"
	require.NoError(t, cfg.Finalize())

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Transport, loaded.Transport)
	assert.Equal(t, cfg.Stub, loaded.Stub)
	assert.Contains(t, cfg.String(), "[transport]")
}
