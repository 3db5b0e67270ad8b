package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. WAITFORME_LAUNCH_OPTIONS_BAR=false.
const EnvPrefix = "WAITFORME"

// LaunchOptions are the komorebic start flags stored under "launch_options".
// TCPPort and ConfigFilePath are null in the file when unset.
type LaunchOptions struct {
	Bar                bool    `json:"bar" mapstructure:"bar"`
	Whkd               bool    `json:"whkd" mapstructure:"whkd"`
	Masir              bool    `json:"masir" mapstructure:"masir"`
	CleanState         bool    `json:"clean_state" mapstructure:"clean_state"`
	AwaitConfiguration bool    `json:"await_configuration" mapstructure:"await_configuration"`
	TCPPort            *int    `json:"tcp_port" mapstructure:"tcp_port"`
	ConfigFilePath     *string `json:"config_file_path" mapstructure:"config_file_path"`
}

// AppConfig is the JSON document stored in the per-user config file.
type AppConfig struct {
	Name           string        `json:"name" mapstructure:"name"`
	WelcomeMessage string        `json:"welcome_message" mapstructure:"welcome_message"`
	SkipTaskbar    bool          `json:"skipTaskbar" mapstructure:"skipTaskbar"`
	LaunchOptions  LaunchOptions `json:"launch_options" mapstructure:"launch_options"`
	CustomArgs     []string      `json:"custom_args" mapstructure:"custom_args"`
}

// LaunchConfig is the part of AppConfig that shapes one launch attempt.
type LaunchConfig struct {
	Options    LaunchOptions
	CustomArgs []string
}

// LaunchConfig returns a copy of the launch-relevant fields.
func (c AppConfig) LaunchConfig() LaunchConfig {
	return LaunchConfig{
		Options:    c.LaunchOptions.clone(),
		CustomArgs: append([]string(nil), c.CustomArgs...),
	}
}

func (o LaunchOptions) clone() LaunchOptions {
	out := o
	if o.TCPPort != nil {
		v := *o.TCPPort
		out.TCPPort = &v
	}
	if o.ConfigFilePath != nil {
		v := *o.ConfigFilePath
		out.ConfigFilePath = &v
	}
	return out
}

// Defaults returns the configuration written when the file is missing. Name
// falls back to the OS user name.
func Defaults() AppConfig {
	name := DefaultUserName()
	return AppConfig{
		Name:           name,
		WelcomeMessage: defaultWelcome(name),
		SkipTaskbar:    true,
		LaunchOptions: LaunchOptions{
			Bar:  true,
			Whkd: true,
		},
		CustomArgs: []string{},
	}
}

func defaultWelcome(name string) string {
	return "Hi " + name + ", give me a moment"
}

// DefaultUserName returns the current OS user name without any domain prefix.
func DefaultUserName() string {
	if u, err := user.Current(); err == nil {
		name := u.Username
		if i := strings.LastIndexAny(name, `\/`); i >= 0 {
			name = name[i+1:]
		}
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	for _, k := range []string{"USERNAME", "USER"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return "friend"
}

// requiredKeys lists every key that must be present in the file; missing ones
// are backfilled from Defaults.
var requiredKeys = [][]string{
	{"name"},
	{"welcome_message"},
	{"skipTaskbar"},
	{"launch_options", "bar"},
	{"launch_options", "whkd"},
	{"launch_options", "masir"},
	{"launch_options", "clean_state"},
	{"launch_options", "await_configuration"},
	{"launch_options", "tcp_port"},
	{"launch_options", "config_file_path"},
	{"custom_args"},
}

// Load reads path, backfills missing keys from Defaults and rewrites the file
// when anything was missing. A missing file is created with the defaults.
// On a malformed or unreadable file it returns Defaults and a *ConfigReadError;
// the file is left untouched so the operator can fix it.
func Load(path string) (AppConfig, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (AppConfig, []string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := Defaults()
			if werr := Write(clean, def); werr != nil {
				return def, nil, &ConfigReadError{Path: clean, Err: werr}
			}
			return def, []string{"*"}, nil
		}
		return Defaults(), nil, &ConfigReadError{Path: clean, Err: err}
	}

	raw := map[string]any{}
	if len(bytes.TrimSpace(b)) > 0 {
		if err := json.Unmarshal(b, &raw); err != nil {
			return Defaults(), nil, &ConfigReadError{Path: clean, Err: err}
		}
	}
	missing := missingKeys(raw)

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(nonEmpty(b))); err != nil {
		return Defaults(), nil, &ConfigReadError{Path: clean, Err: err}
	}
	var fileCfg AppConfig
	if err := v.Unmarshal(&fileCfg); err != nil {
		return Defaults(), nil, &ConfigReadError{Path: clean, Err: err}
	}
	if strings.TrimSpace(fileCfg.Name) == "" {
		fileCfg.Name = DefaultUserName()
		if !contains(missing, "name") {
			missing = append(missing, "name")
		}
	}
	if fileCfg.CustomArgs == nil {
		fileCfg.CustomArgs = []string{}
	}
	if len(missing) > 0 {
		if err := Write(clean, fileCfg); err != nil {
			return normalize(fileCfg), missing, &ConfigReadError{Path: clean, Err: fmt.Errorf("rewrite with defaults: %w", err)}
		}
	}

	// Environment overrides apply to the effective config only, never to the file.
	bindEnv(v)
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return normalize(fileCfg), missing, &ConfigReadError{Path: clean, Err: err}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = fileCfg.Name
	}
	return normalize(cfg), missing, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	def := Defaults()
	v.SetDefault("name", "")
	v.SetDefault("welcome_message", def.WelcomeMessage)
	v.SetDefault("skipTaskbar", def.SkipTaskbar)
	v.SetDefault("launch_options.bar", def.LaunchOptions.Bar)
	v.SetDefault("launch_options.whkd", def.LaunchOptions.Whkd)
	v.SetDefault("launch_options.masir", def.LaunchOptions.Masir)
	v.SetDefault("launch_options.clean_state", def.LaunchOptions.CleanState)
	v.SetDefault("launch_options.await_configuration", def.LaunchOptions.AwaitConfiguration)
	v.SetDefault("custom_args", []string{})
	return v
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("launch_options.tcp_port")
	_ = v.BindEnv("launch_options.config_file_path")
}

// normalize enforces the invariants the rest of the program relies on.
func normalize(c AppConfig) AppConfig {
	if c.LaunchOptions.TCPPort != nil && *c.LaunchOptions.TCPPort <= 0 {
		c.LaunchOptions.TCPPort = nil
	}
	if c.LaunchOptions.ConfigFilePath != nil && strings.TrimSpace(*c.LaunchOptions.ConfigFilePath) == "" {
		c.LaunchOptions.ConfigFilePath = nil
	}
	if c.CustomArgs == nil {
		c.CustomArgs = []string{}
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultUserName()
	}
	return c
}

// Write stores cfg as indented JSON, creating the parent directory if needed.
func Write(path string, cfg AppConfig) error {
	if cfg.CustomArgs == nil {
		cfg.CustomArgs = []string{}
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// missingKeys reports required keys absent from the decoded file. Key lookup is
// case-insensitive to match how viper resolves them. A key explicitly set to
// null counts as present.
func missingKeys(raw map[string]any) []string {
	var out []string
	for _, path := range requiredKeys {
		m := raw
		for i, k := range path {
			v, ok := lookupFold(m, k)
			if !ok {
				out = append(out, strings.Join(path, "."))
				break
			}
			if i < len(path)-1 {
				next, isMap := v.(map[string]any)
				if !isMap {
					out = append(out, strings.Join(path, "."))
					break
				}
				m = next
			}
		}
	}
	return out
}

func lookupFold(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func nonEmpty(b []byte) []byte {
	if len(bytes.TrimSpace(b)) == 0 {
		return []byte("{}")
	}
	return b
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
