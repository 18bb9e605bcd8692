package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vars = []string{
	"TODO_BACKEND", "TODO_DATA_DIR", "TODO_TABLE_URL", "TODO_TABLE_KEY",
	"TODO_TABLE", "TODO_LOG_LEVEL", "TODO_THEME", "TODO_TIMEOUT",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, "", cfg.DataDir)
	assert.Equal(t, "tasks", cfg.Table)
	assert.Equal(t, "classic", cfg.Theme)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.TableKey)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TODO_BACKEND", "remote")
	t.Setenv("TODO_TABLE_URL", "postgres://app@db/todos")
	t.Setenv("TODO_TABLE_KEY", "secret")
	t.Setenv("TODO_TABLE", "chores")
	t.Setenv("TODO_LOG_LEVEL", "DEBUG")
	t.Setenv("TODO_TIMEOUT", "3s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendRemote, cfg.Backend)
	assert.Equal(t, "postgres://app@db/todos", cfg.TableURL)
	assert.Equal(t, "secret", cfg.TableKey)
	assert.Equal(t, "chores", cfg.Table)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_BadValues(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TODO_LOG_LEVEL", "loud")
	_, err := FromEnv()
	assert.Error(t, err)

	cleanEnv(t)
	t.Setenv("TODO_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "local", cfg: Config{Backend: BackendLocal, Timeout: time.Second}},
		{name: "remote with url", cfg: Config{Backend: BackendRemote, TableURL: "memory://", Timeout: time.Second}},
		{name: "remote without url", cfg: Config{Backend: BackendRemote, Timeout: time.Second}, wantErr: true},
		{name: "unknown backend", cfg: Config{Backend: "cloud", Timeout: time.Second}, wantErr: true},
		{name: "zero timeout", cfg: Config{Backend: BackendLocal}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	cleanEnv(t)
	os.Unsetenv("TODO_BACKEND")
	os.Unsetenv("TODO_TABLE_URL")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TODO_BACKEND=remote\nTODO_TABLE_URL=memory://\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("TODO_BACKEND")
		os.Unsetenv("TODO_TABLE_URL")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, cfg.Backend)
	assert.Equal(t, "memory://", cfg.TableURL)
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	cleanEnv(t)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	_, err = Load()
	assert.NoError(t, err)
}

func TestFromEnv_CorruptCredentials(t *testing.T) {
	cleanEnv(t)
	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".tada")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{not json"), 0o600))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.NoError(t, cfg.Validate())

	cfg.Backend, cfg.TableURL = BackendRemote, "memory://"
	assert.ErrorContains(t, cfg.Validate(), "parse credentials")
}
