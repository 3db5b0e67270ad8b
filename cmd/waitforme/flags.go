package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags Flag structs to decouple cobra from logic for testing.
type RunFlags struct {
	ConfigPath     string
	LogLevel       string
	Listen         string
	BasePath       string
	MaxAttempts    int
	Settle         time.Duration
	Fade           time.Duration
	Command        string
	PrimaryImage   string
	CompanionImage string
	Inspector      string
	Metrics        bool
	NoConsole      bool
}

// ClientFlags select the running launcher a client command talks to.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type ConfigInitFlags struct {
	ConfigPath string
	Force      bool
}
