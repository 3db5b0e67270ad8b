package config

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Source loads the config file on demand and remembers the last good snapshot.
// Load never fails: read errors are logged and defaults are returned.
type Source struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	last AppConfig
	err  error
}

func NewSource(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, logger: logger, last: Defaults()}
}

// Path returns the config file location.
func (s *Source) Path() string { return s.path }

// Load reads the file fresh. Callers use it at the start of every attempt so
// edits made between attempts take effect.
func (s *Source) Load() AppConfig {
	raw := s.peekTCPPort()
	cfg, missing, err := load(s.path)
	if err != nil {
		var rerr *ConfigReadError
		if errors.As(err, &rerr) {
			s.logger.Warn("config unreadable, using defaults", "path", rerr.Path, "error", rerr.Err)
		} else {
			s.logger.Warn("config unreadable, using defaults", "path", s.path, "error", err)
		}
	}
	if len(missing) > 0 {
		s.logger.Info("config backfilled with defaults", "path", s.path, "keys", strings.Join(missing, ","))
	}
	if raw != nil && *raw <= 0 {
		s.logger.Warn("ignoring non-positive tcp_port", "tcp_port", *raw)
	}

	s.mu.Lock()
	s.last = cfg
	s.err = err
	s.mu.Unlock()
	return cfg
}

// Current returns the snapshot from the most recent Load without touching disk.
func (s *Source) Current() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Err returns the error from the most recent Load, if any.
func (s *Source) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// peekTCPPort returns the tcp_port stored on disk before normalization so the
// discarded value can be reported.
func (s *Source) peekTCPPort() *int {
	v := newViper()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil
	}
	if !v.IsSet("launch_options.tcp_port") || v.Get("launch_options.tcp_port") == nil {
		return nil
	}
	n := v.GetInt("launch_options.tcp_port")
	return &n
}
