package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessSample is a point-in-time resource reading for one running image.
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

// SampleImages reads resource usage for every running process whose name
// matches one of images, ignoring case and an optional ".exe" suffix.
// Processes that vanish mid-scan are skipped.
func SampleImages(ctx context.Context, images []string) ([]ProcessSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(images))
	for _, img := range images {
		want[imageKey(img)] = struct{}{}
	}

	now := time.Now()
	var out []ProcessSample
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if _, ok := want[imageKey(name)]; !ok {
			continue
		}
		s := ProcessSample{PID: p.Pid, Name: name, Timestamp: now}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			s.CPUPercent = cpu
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			s.MemoryRSS = mem.RSS
			s.MemoryMB = float64(mem.RSS) / 1024 / 1024
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			s.NumThreads = n
		}
		if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
			s.StartedAt = time.UnixMilli(ms)
		}
		out = append(out, s)
	}
	return out, nil
}

func imageKey(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}
