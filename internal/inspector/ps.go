package inspector

import (
	"context"
	"fmt"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// PSInspector walks the process table through gopsutil and compares image names
// exactly (case-insensitive, ".exe" optional), which avoids the substring false
// positives of ListingInspector. It works on every OS gopsutil supports.
type PSInspector struct {
	// Since, when set, ignores processes started before this instant so a stale
	// instance from an earlier session is not mistaken for the new one.
	Since time.Time
}

// Match describes one process that matched an image name.
type Match struct {
	PID       int32
	Name      string
	StartedAt time.Time
}

func (i PSInspector) Present(ctx context.Context, image string) (bool, error) {
	ms, err := i.Find(ctx, image)
	if err != nil {
		return false, err
	}
	return len(ms) > 0, nil
}

func (i PSInspector) Describe() string {
	if i.Since.IsZero() {
		return "process-table"
	}
	return "process-table:since=" + i.Since.UTC().Format(time.RFC3339)
}

// Find returns every listed process whose image name matches image.
func (i PSInspector) Find(ctx context.Context, image string) ([]Match, error) {
	if strings.TrimSpace(image) == "" {
		return nil, nil
	}
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []Match
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// exited between listing and lookup
			continue
		}
		if !imageMatches(name, image) {
			continue
		}
		m := Match{PID: p.Pid, Name: name}
		if start := procStartUnix(int(p.Pid)); start > 0 {
			m.StartedAt = time.Unix(start, 0)
		}
		if !i.Since.IsZero() && !m.StartedAt.IsZero() && m.StartedAt.Before(i.Since.Truncate(time.Second)) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// imageMatches compares a process name with an image name. Windows reports
// "komorebi.exe" while other systems report "komorebi", so the ".exe" suffix is
// optional on both sides.
func imageMatches(name, image string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	img := strings.ToLower(strings.TrimSpace(image))
	if n == "" || img == "" {
		return false
	}
	return strings.TrimSuffix(n, ".exe") == strings.TrimSuffix(img, ".exe")
}
