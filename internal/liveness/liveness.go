package liveness

import (
	"context"
	"log/slog"

	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/inspector"
	"github.com/loykin/waitforme/internal/metrics"
)

// Default image names checked after komorebic exits.
const (
	DefaultPrimary = "komorebi.exe"
	DefaultBar     = "komorebi-bar.exe"
)

// Images names the executables that must be running.
type Images struct {
	Primary string
	Bar     string
}

func DefaultImages() Images {
	return Images{Primary: DefaultPrimary, Bar: DefaultBar}
}

// Requirement is what must be present for a start to count as live.
type Requirement struct {
	Primary    string
	Companions []string
}

// RequirementFor derives the requirement from the launch options: the bar
// image is required iff the bar was requested.
func RequirementFor(opts config.LaunchOptions, images Images) Requirement {
	if images.Primary == "" {
		images.Primary = DefaultPrimary
	}
	if images.Bar == "" {
		images.Bar = DefaultBar
	}
	req := Requirement{Primary: images.Primary}
	if opts.Bar {
		req.Companions = []string{images.Bar}
	}
	return req
}

// Checker answers whether a Requirement is currently satisfied.
type Checker struct {
	inspector inspector.Inspector
	logger    *slog.Logger
}

func NewChecker(insp inspector.Inspector, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{inspector: insp, logger: logger}
}

// Check returns true only when the primary and every companion are present.
// Inspector errors are logged and count as absent.
func (c *Checker) Check(ctx context.Context, req Requirement) bool {
	if !c.present(ctx, req.Primary) {
		metrics.RecordLivenessCheck(false)
		return false
	}
	for _, img := range req.Companions {
		if !c.present(ctx, img) {
			metrics.RecordLivenessCheck(false)
			return false
		}
	}
	metrics.RecordLivenessCheck(true)
	return true
}

func (c *Checker) present(ctx context.Context, image string) bool {
	ok, err := c.inspector.Present(ctx, image)
	if err != nil {
		c.logger.Error("process inspection failed", "image", image, "inspector", c.inspector.Describe(), "error", err)
		return false
	}
	c.logger.Debug("process inspection", "image", image, "present", ok)
	return ok
}
