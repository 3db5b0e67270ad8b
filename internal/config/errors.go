package config

import "fmt"

// ConfigReadError reports a config file that could not be read, parsed or
// rewritten. Loaders recover from it by falling back to Defaults.
type ConfigReadError struct {
	Path string
	Err  error
}

func (e *ConfigReadError) Error() string {
	return fmt.Sprintf("read config %s: %v", e.Path, e.Err)
}

func (e *ConfigReadError) Unwrap() error { return e.Err }
