package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func readRaw(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.True(t, cfg.SkipTaskbar)
	assert.True(t, cfg.LaunchOptions.Bar)
	assert.True(t, cfg.LaunchOptions.Whkd)
	assert.False(t, cfg.LaunchOptions.Masir)
	assert.Nil(t, cfg.LaunchOptions.TCPPort)
	assert.Nil(t, cfg.LaunchOptions.ConfigFilePath)
	assert.Empty(t, cfg.CustomArgs)
	assert.NotEmpty(t, cfg.Name)
	assert.Equal(t, "Hi "+cfg.Name+", give me a moment", cfg.WelcomeMessage)

	raw := readRaw(t, p)
	assert.Contains(t, raw, "skipTaskbar")
	lo, ok := raw["launch_options"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, lo, "tcp_port")
	assert.Nil(t, lo["tcp_port"])
}

func TestLoad_BackfillsMissingKeys(t *testing.T) {
	p := writeRaw(t, t.TempDir(), `{"name":"ada","launch_options":{"bar":false}}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "ada", cfg.Name)
	assert.False(t, cfg.LaunchOptions.Bar)
	assert.True(t, cfg.LaunchOptions.Whkd)

	raw := readRaw(t, p)
	for _, k := range []string{"name", "welcome_message", "skipTaskbar", "launch_options", "custom_args"} {
		assert.Contains(t, raw, k)
	}
	lo := raw["launch_options"].(map[string]any)
	assert.Equal(t, false, lo["bar"])
	for _, k := range []string{"whkd", "masir", "clean_state", "await_configuration", "tcp_port", "config_file_path"} {
		assert.Contains(t, lo, k)
	}
}

func TestLoad_CompleteFileIsNotRewritten(t *testing.T) {
	dir := t.TempDir()
	body := `{"name":"ada","welcome_message":"hey","skipTaskbar":false,` +
		`"launch_options":{"bar":true,"whkd":false,"masir":true,"clean_state":false,` +
		`"await_configuration":true,"tcp_port":5000,"config_file_path":"C:/k.json"},` +
		`"custom_args":["--foo"]}`
	p := writeRaw(t, dir, body)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "hey", cfg.WelcomeMessage)
	assert.False(t, cfg.SkipTaskbar)
	require.NotNil(t, cfg.LaunchOptions.TCPPort)
	assert.Equal(t, 5000, *cfg.LaunchOptions.TCPPort)
	require.NotNil(t, cfg.LaunchOptions.ConfigFilePath)
	assert.Equal(t, "C:/k.json", *cfg.LaunchOptions.ConfigFilePath)
	assert.Equal(t, []string{"--foo"}, cfg.CustomArgs)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, body, string(b))
}

func TestLoad_MalformedFileFallsBackWithoutOverwrite(t *testing.T) {
	p := writeRaw(t, t.TempDir(), `{"name": `)

	cfg, err := Load(p)
	require.Error(t, err)
	var rerr *ConfigReadError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, p, rerr.Path)
	assert.Equal(t, Defaults().LaunchOptions, cfg.LaunchOptions)

	b, _ := os.ReadFile(p)
	assert.Equal(t, `{"name": `, string(b))
}

func TestLoad_NonPositivePortNormalized(t *testing.T) {
	p := writeRaw(t, t.TempDir(), `{"launch_options":{"tcp_port":0,"config_file_path":""}}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Nil(t, cfg.LaunchOptions.TCPPort)
	assert.Nil(t, cfg.LaunchOptions.ConfigFilePath)
}

func TestLoad_EnvOverrideDoesNotReachFile(t *testing.T) {
	p := writeRaw(t, t.TempDir(), `{"launch_options":{"bar":true}}`)
	t.Setenv("WAITFORME_LAUNCH_OPTIONS_BAR", "false")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.False(t, cfg.LaunchOptions.Bar)

	lo := readRaw(t, p)["launch_options"].(map[string]any)
	assert.Equal(t, true, lo["bar"])
}

func TestLaunchConfig_IsACopy(t *testing.T) {
	port := 9000
	cfg := Defaults()
	cfg.LaunchOptions.TCPPort = &port
	cfg.CustomArgs = []string{"a"}

	lc := cfg.LaunchConfig()
	*lc.Options.TCPPort = 1
	lc.CustomArgs[0] = "b"
	assert.Equal(t, 9000, port)
	assert.Equal(t, "a", cfg.CustomArgs[0])
}

func TestMissingKeys_CaseInsensitiveAndNull(t *testing.T) {
	raw := map[string]any{
		"NAME":            "x",
		"welcome_message": "y",
		"skiptaskbar":     true,
		"launch_options": map[string]any{
			"bar": true, "whkd": true, "masir": false, "clean_state": false,
			"await_configuration": false, "tcp_port": nil, "config_file_path": nil,
		},
		"custom_args": []any{},
	}
	assert.Empty(t, missingKeys(raw))

	raw["launch_options"] = "oops"
	assert.Len(t, missingKeys(raw), 7)
}

func TestSource_LoadAndCurrent(t *testing.T) {
	p := writeRaw(t, t.TempDir(), `{"name":"ada"}`)
	s := NewSource(p, nil)
	assert.Equal(t, p, s.Path())

	cfg := s.Load()
	assert.Equal(t, "ada", cfg.Name)
	assert.Equal(t, cfg, s.Current())
	assert.NoError(t, s.Err())

	require.NoError(t, os.WriteFile(p, []byte("nope"), 0o600))
	cfg = s.Load()
	assert.Error(t, s.Err())
	assert.Equal(t, Defaults().WelcomeMessage, cfg.WelcomeMessage)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeRaw(t, dir, `{"name":"ada"}`)
	s := NewSource(p, nil)
	s.Load()

	w := NewWatcher(s, 20*time.Millisecond, nil)
	got := make(chan AppConfig, 4)
	w.OnReload(func(c AppConfig) { got <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	cfg := s.Current()
	cfg.Name = "grace"
	require.NoError(t, Write(p, cfg))

	select {
	case c := <-got:
		assert.Equal(t, "grace", c.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestPaths(t *testing.T) {
	dir, err := DefaultDir()
	if err != nil {
		t.Skip("no user config dir:", err)
	}
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.json"), p)
	lp, err := DefaultLogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", "waitforme.log"), lp)
}
