package inspector

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestImageMatches(t *testing.T) {
	cases := []struct {
		name, image string
		want        bool
	}{
		{"komorebi.exe", "komorebi.exe", true},
		{"Komorebi.EXE", "komorebi.exe", true},
		{"komorebi", "komorebi.exe", true},
		{"komorebi.exe", "komorebi", true},
		{"komorebi-bar.exe", "komorebi.exe", false},
		{"komorebi.exe", "komorebi-bar.exe", false},
		{"", "komorebi.exe", false},
		{"komorebi.exe", "", false},
	}
	for _, c := range cases {
		if got := imageMatches(c.name, c.image); got != c.want {
			t.Errorf("imageMatches(%q, %q) = %v, want %v", c.name, c.image, got, c.want)
		}
	}
}

func selfImage(t *testing.T) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("process name lookup for the test binary is only stable on linux")
	}
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("executable path unavailable: %v", err)
	}
	name := filepath.Base(exe)
	if len(name) >= 15 {
		t.Skip("test binary name exceeds the kernel comm length")
	}
	return name
}

func TestPSInspector_FindsSelf(t *testing.T) {
	img := selfImage(t)
	ms, err := PSInspector{}.Find(context.Background(), img)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	found := false
	for _, m := range ms {
		if int(m.PID) == os.Getpid() {
			found = true
			if m.StartedAt.IsZero() {
				t.Fatalf("expected start time for own process")
			}
		}
	}
	if !found {
		t.Fatalf("own pid %d not among matches %+v", os.Getpid(), ms)
	}
}

func TestPSInspector_SinceFiltersOlderProcesses(t *testing.T) {
	img := selfImage(t)
	ins := PSInspector{Since: time.Now().Add(time.Hour)}
	ok, err := ins.Present(context.Background(), img)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if ok {
		t.Fatalf("expected processes started before Since to be ignored")
	}
}

func TestPSInspector_Absent(t *testing.T) {
	ok, err := PSInspector{}.Present(context.Background(), "__definitely_not_running__.exe")
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if ok {
		t.Fatalf("expected absent image to report false")
	}
	if (PSInspector{}).Describe() != "process-table" {
		t.Fatalf("Describe mismatch")
	}
}
