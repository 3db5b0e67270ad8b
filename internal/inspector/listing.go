package inspector

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ListingInspector asks the OS for the full process listing once per query and
// matches the image name as a case-insensitive substring of the listing text.
// Substring matching can report false positives (e.g. "komorebi.exe" inside a
// longer image name); callers treat the answer as best effort.
type ListingInspector struct {
	// Command builds the listing command. Nil selects the platform default,
	// which is only available on Windows.
	Command func(ctx context.Context) (*exec.Cmd, error)
}

func (i ListingInspector) Present(ctx context.Context, image string) (bool, error) {
	out, err := i.listing(ctx)
	if err != nil {
		return false, err
	}
	return containsFold(out, image), nil
}

func (i ListingInspector) Describe() string {
	if i.Command != nil {
		return "listing:custom"
	}
	return "listing:" + listingName
}

func (i ListingInspector) listing(ctx context.Context) (string, error) {
	build := i.Command
	if build == nil {
		build = platformListCommand
	}
	cmd, err := build(ctx)
	if err != nil {
		return "", err
	}
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return "", fmt.Errorf("process listing exited with %d: %w", ee.ExitCode(), err)
		}
		return "", fmt.Errorf("process listing: %w", err)
	}
	return string(out), nil
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
