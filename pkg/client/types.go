package client

import "time"

// LaunchStatus is the terminal outcome of a launch. Error is nil on success,
// a number for a non-zero exit code, or a message string.
type LaunchStatus struct {
	Status  bool    `json:"status"`
	Error   any     `json:"error"`
	LogPath *string `json:"logPath"`
}

// Status is the launcher's supervisor snapshot.
type Status struct {
	State        string        `json:"state"`
	AttemptsMade int           `json:"attempts_made"`
	MaxAttempts  int           `json:"max_attempts"`
	Sequence     string        `json:"sequence"`
	Outstanding  int           `json:"outstanding"`
	LastStatus   *LaunchStatus `json:"last_status,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// LaunchOptions mirrors the "launch_options" block of the config file.
type LaunchOptions struct {
	Bar                bool    `json:"bar"`
	Whkd               bool    `json:"whkd"`
	Masir              bool    `json:"masir"`
	CleanState         bool    `json:"clean_state"`
	AwaitConfiguration bool    `json:"await_configuration"`
	TCPPort            *int    `json:"tcp_port"`
	ConfigFilePath     *string `json:"config_file_path"`
}

// AppConfig is the config snapshot the launcher is using.
type AppConfig struct {
	Name           string        `json:"name"`
	WelcomeMessage string        `json:"welcome_message"`
	SkipTaskbar    bool          `json:"skipTaskbar"`
	LaunchOptions  LaunchOptions `json:"launch_options"`
	CustomArgs     []string      `json:"custom_args"`
}

// ProcessSample is resource usage for one running komorebi image.
type ProcessSample struct {
	PID        int32     `json:"pid"`
	Name       string    `json:"name"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
