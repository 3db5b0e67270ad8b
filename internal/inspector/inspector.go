package inspector

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Inspector reports whether a process image is present in the OS process table.
// A positive answer is a liveness heuristic: the process may still be initializing.
// Implementations must be safe for concurrent use.
type Inspector interface {
	// Present returns true if a process matching image is currently listed.
	Present(ctx context.Context, image string) (bool, error)
	// Describe returns a human-readable description of the inspection method.
	Describe() string
}

// Kind names accepted by New.
const (
	KindTasklist = "tasklist"
	KindProcess  = "process"
)

// UnsupportedPlatformError is returned when process listing is requested on an
// OS that has no listing command wired.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("process listing is not supported on %s", e.GOOS)
}

// New returns the inspector registered under kind. An empty kind or "tasklist"
// selects the listing inspector where the OS has a listing command and the
// process-table inspector elsewhere. "listing" always selects the listing
// inspector.
func New(kind string) (Inspector, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindTasklist:
		if !listingSupported {
			return PSInspector{}, nil
		}
		return ListingInspector{}, nil
	case "listing":
		return ListingInspector{}, nil
	case KindProcess, "ps", "gopsutil":
		return PSInspector{}, nil
	default:
		return nil, fmt.Errorf("unknown inspector %q (want %s or %s)", kind, KindTasklist, KindProcess)
	}
}

func unsupported() error { return &UnsupportedPlatformError{GOOS: runtime.GOOS} }
