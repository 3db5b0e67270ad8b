package env

import (
	"os"
	"strings"

	"github.com/loykin/waitforme/internal/config"
)

type Var map[string]string

// Env resolves variable references in launch settings. Both ${VAR} and the
// Windows %VAR% form are understood; unknown references are left as written.
type Env struct {
	Var Var // overrides applied on top of the base (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.env = base
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Lookup returns the value of k, overrides first. Names fall back to a
// case-insensitive match since Windows treats them that way.
func (e *Env) Lookup(k string) (string, bool) {
	if e.env == nil {
		e.FromOS()
	}
	for _, m := range []Var{e.Var, e.env} {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	for _, m := range []Var{e.Var, e.env} {
		for name, v := range m {
			if strings.EqualFold(name, k) {
				return v, true
			}
		}
	}
	return "", false
}

// Expand replaces ${VAR} and %VAR% references in s. Expansion is not
// recursive.
func (e *Env) Expand(s string) string {
	if !strings.ContainsAny(s, "$%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			if end := strings.IndexByte(s[i+2:], '}'); end > 0 {
				name := s[i+2 : i+2+end]
				if v, ok := e.Lookup(name); ok {
					b.WriteString(v)
					i += end + 3
					continue
				}
			}
		case s[i] == '%':
			if end := strings.IndexByte(s[i+1:], '%'); end > 0 {
				name := s[i+1 : i+1+end]
				if !strings.ContainsAny(name, " \t") {
					if v, ok := e.Lookup(name); ok {
						b.WriteString(v)
						i += end + 2
						continue
					}
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// ExpandLaunch resolves variable references in the config path and custom
// args. Flags are left alone.
func (e *Env) ExpandLaunch(lc config.LaunchConfig) config.LaunchConfig {
	if p := lc.Options.ConfigFilePath; p != nil {
		v := e.Expand(*p)
		lc.Options.ConfigFilePath = &v
	}
	if len(lc.CustomArgs) > 0 {
		args := make([]string, len(lc.CustomArgs))
		for i, a := range lc.CustomArgs {
			args[i] = e.Expand(a)
		}
		lc.CustomArgs = args
	}
	return lc
}

// Merge composes a subprocess environment: the OS base, then overrides, then
// extra "K=V" entries, with references in values expanded against the
// composed set.
func (e *Env) Merge(extra []string) []string {
	if e.env == nil {
		e.FromOS()
	}
	m := make(Var, len(e.env)+len(e.Var)+len(extra))
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	for _, kv := range extra {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	composed := &Env{Var: m, env: Var{}}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+composed.Expand(v))
	}
	return out
}
