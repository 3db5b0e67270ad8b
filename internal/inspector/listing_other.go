//go:build !windows

package inspector

import (
	"context"
	"os/exec"
)

const (
	listingName      = "unsupported"
	listingSupported = false
)

func platformListCommand(_ context.Context) (*exec.Cmd, error) {
	return nil, unsupported()
}
