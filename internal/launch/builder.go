package launch

import (
	"strconv"
	"strings"

	"github.com/loykin/waitforme/internal/config"
)

// DefaultBinary is the komorebi control CLI.
const DefaultBinary = "komorebic"

// Build renders the start flags for cfg. It is pure: the same config always
// yields the same argv, in a fixed order, with custom args appended verbatim.
func Build(cfg config.LaunchConfig) []string {
	o := cfg.Options
	args := make([]string, 0, 7+len(cfg.CustomArgs))
	if o.Bar {
		args = append(args, "--bar")
	}
	if o.Whkd {
		args = append(args, "--whkd")
	}
	if o.Masir {
		args = append(args, "--masir")
	}
	if o.CleanState {
		args = append(args, "--clean-state")
	}
	if o.AwaitConfiguration {
		args = append(args, "--await-configuration")
	}
	if o.TCPPort != nil && *o.TCPPort != 0 {
		args = append(args, "--tcp-port="+strconv.Itoa(*o.TCPPort))
	}
	if o.ConfigFilePath != nil && *o.ConfigFilePath != "" {
		args = append(args, "--config="+*o.ConfigFilePath)
	}
	for _, a := range cfg.CustomArgs {
		if a != "" {
			args = append(args, a)
		}
	}
	return args
}

// Command returns the full argv passed to the binary: "start" followed by Build.
func Command(cfg config.LaunchConfig) []string {
	return append([]string{"start"}, Build(cfg)...)
}

// CommandLine renders bin and argv the way they are logged before spawning.
func CommandLine(bin string, argv []string) string {
	parts := make([]string, 0, len(argv)+1)
	for _, s := range append([]string{bin}, argv...) {
		if s == "" || strings.ContainsAny(s, " \t\"") {
			s = strconv.Quote(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
