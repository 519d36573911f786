package scan

import (
	"context"
	"time"

	"punchclock/internal/auth"
	"punchclock/internal/geo"
	"punchclock/internal/punch"
)

// ProcessorPuncher adapts the punch processor for the device's signed-in user,
// making the controller the front door to the processor.
type ProcessorPuncher struct {
	Processor *punch.Processor
	Identity  auth.Identity

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Punch forwards the decoded token with the scan instant and device location.
func (a ProcessorPuncher) Punch(ctx context.Context, tokenText string, loc *geo.Point) (punch.Result, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return a.Processor.HandleScan(ctx, a.Identity, tokenText, now(), loc)
}
