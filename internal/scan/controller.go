// Package scan drives the device-side punch flow: acquire camera and location,
// read decoded frames until a token appears, then hand it to the punch
// processor exactly once. The camera is an exclusive resource and is released
// on every exit path before any network work starts.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"punchclock/internal/geo"
	"punchclock/internal/punch"
)

// State of one scan session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateScanning
	StateProcessing
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateScanning:
		return "scanning"
	case StateProcessing:
		return "processing"
	case StateResult:
		return "result"
	}
	return "unknown"
}

var (
	// ErrCameraUnavailable means no scan was attempted: permission denied or
	// hardware failure. Distinct from a rejected punch.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrBusy means a scan session is already in flight on this controller.
	ErrBusy = errors.New("scan session already in progress")
)

// Camera starts a stream of decoded token strings read from video frames.
// Stop must be safe to call more than once.
type Camera interface {
	Start(ctx context.Context) (<-chan string, error)
	Stop()
}

// Locator supplies an optional device coordinate.
type Locator interface {
	Locate(ctx context.Context) (geo.Point, error)
}

// Puncher is the processor entry point the controller invokes once per decode.
type Puncher interface {
	Punch(ctx context.Context, tokenText string, loc *geo.Point) (punch.Result, error)
}

// Outcome is the terminal result of a scan session.
type Outcome struct {
	Result *punch.Result
	Err    error
}

// Controller is the per-device scan state machine. One camera session at a time.
type Controller struct {
	camera     Camera
	locator    Locator
	puncher    Puncher
	locTimeout time.Duration

	mu    sync.Mutex
	state State
}

// NewController wires a controller. locator may be nil when the device denies
// location access entirely.
func NewController(camera Camera, locator Locator, puncher Puncher, locTimeout time.Duration) *Controller {
	if locTimeout <= 0 {
		locTimeout = 3 * time.Second
	}
	return &Controller{camera: camera, locator: locator, puncher: puncher, locTimeout: locTimeout}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns a finished session to Idle so a new scan can start.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResult {
		return ErrBusy
	}
	c.state = StateIdle
	return nil
}

// Run executes one full scan session and always lands in StateResult, so the
// caller is never left in an ambiguous "still scanning" state. Cancelling ctx
// from Requesting or Scanning stops the camera before discarding state.
func (c *Controller) Run(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Outcome{Err: ErrBusy}
	}
	c.state = StateRequesting
	c.mu.Unlock()

	// Location is requested concurrently with the camera and never blocks the
	// transition to Scanning. The goroutine always delivers within locTimeout.
	locCh := make(chan *geo.Point, 1)
	go func() {
		if c.locator == nil {
			locCh <- nil
			return
		}
		locCtx, cancel := context.WithTimeout(ctx, c.locTimeout)
		defer cancel()
		p, err := c.locator.Locate(locCtx)
		if err != nil {
			locCh <- nil
			return
		}
		locCh <- &p
	}()

	frames, err := c.camera.Start(ctx)
	if err != nil {
		return c.finish(Outcome{Err: fmt.Errorf("%w: %v", ErrCameraUnavailable, err)})
	}
	stop := sync.OnceFunc(c.camera.Stop)
	defer stop()

	c.setState(StateScanning)

	for {
		select {
		case <-ctx.Done():
			stop()
			return c.finish(Outcome{Err: ctx.Err()})
		case text, ok := <-frames:
			if !ok {
				stop()
				return c.finish(Outcome{Err: fmt.Errorf("%w: frame stream ended", ErrCameraUnavailable)})
			}
			if text == "" {
				continue
			}
			if !c.beginProcessing() {
				// A decode already won; later frames are ignored.
				continue
			}
			// Release the camera before any network round trip.
			stop()

			var loc *geo.Point
			select {
			case loc = <-locCh:
			case <-ctx.Done():
				return c.finish(Outcome{Err: ctx.Err()})
			}

			res, err := c.puncher.Punch(ctx, text, loc)
			if err != nil {
				return c.finish(Outcome{Result: &res, Err: err})
			}
			return c.finish(Outcome{Result: &res})
		}
	}
}

// beginProcessing is the single-flight guard: only the Scanning→Processing
// transition may invoke the puncher, and it happens at most once per session.
func (c *Controller) beginProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateScanning {
		return false
	}
	c.state = StateProcessing
	return true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) finish(o Outcome) Outcome {
	c.setState(StateResult)
	return o
}
