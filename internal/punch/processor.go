package punch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"punchclock/internal/auth"
	"punchclock/internal/geo"
)

// Store is the persistence collaborator for punch records.
type Store interface {
	FindOpen(ctx context.Context, userID, date string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	CloseSession(ctx context.Context, id string, logoutAt time.Time, minutes int) error
	CountClosed(ctx context.Context, userID, date string) (int, error)
	ListRange(ctx context.Context, start, end string) ([]Record, error)
}

// TokenChecker validates a scanned value against a snapshot of the current secret.
type TokenChecker interface {
	Validate(ctx context.Context, value string) (bool, error)
}

// Result is the structured outcome of a scan, with enough data for the caller
// to render a human-readable confirmation.
type Result struct {
	Kind   Kind    `json:"kind"`
	Record *Record `json:"record,omitempty"`
}

// Processor turns scanned tokens into IN/OUT punch records.
type Processor struct {
	store  Store
	tokens TokenChecker
	locks  Locker

	// fence is nil when geofencing is disabled.
	fence *geo.Fence

	// maxSessions caps IN/OUT cycles per day; 0 means unlimited.
	maxSessions int
}

// NewProcessor wires a processor. A nil fence disables geofencing.
func NewProcessor(store Store, tokens TokenChecker, locks Locker, fence *geo.Fence, maxSessions int) *Processor {
	if locks == nil {
		locks = NewKeyLock()
	}
	return &Processor{store: store, tokens: tokens, locks: locks, fence: fence, maxSessions: maxSessions}
}

// HandleScan decides whether the scan opens or closes a session for the user
// on the calendar date of at. Location is best-effort: a nil loc never blocks
// the punch, geofencing only applies when the device supplied a reading.
func (p *Processor) HandleScan(ctx context.Context, id auth.Identity, tokenText string, at time.Time, loc *geo.Point) (Result, error) {
	ok, err := p.tokens.Validate(ctx, tokenText)
	if err != nil {
		scansTotal.WithLabelValues("error").Inc()
		return Result{Kind: KindRejected}, fmt.Errorf("token validation: %w", err)
	}
	if !ok {
		scansTotal.WithLabelValues("invalid_token").Inc()
		return Result{Kind: KindRejected}, ErrInvalidToken
	}

	if p.fence != nil && loc != nil && !p.fence.Contains(*loc) {
		scansTotal.WithLabelValues("out_of_range").Inc()
		return Result{Kind: KindRejected}, ErrOutOfRange
	}

	date := at.Format(DateLayout)
	release, err := p.acquire(ctx, id.UserID+"|"+date)
	if err != nil {
		scansTotal.WithLabelValues("conflict").Inc()
		return Result{Kind: KindRejected}, err
	}
	defer release()

	res, err := p.punch(ctx, id, date, at)
	if err != nil {
		label := "error"
		if errors.Is(err, ErrDayComplete) {
			label = "day_complete_rejected"
		}
		scansTotal.WithLabelValues(label).Inc()
		return Result{Kind: KindRejected}, err
	}
	scansTotal.WithLabelValues(string(res.Kind)).Inc()
	return res, nil
}

// acquire takes the per-key lock, retrying once; contention is expected to be
// a double-tap on one device, so the retry makes it transparent to the caller.
func (p *Processor) acquire(ctx context.Context, key string) (func(), error) {
	release, err := p.locks.TryAcquire(ctx, key)
	if err == nil {
		return release, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, err
	}
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.locks.TryAcquire(ctx, key)
}

func (p *Processor) punch(ctx context.Context, id auth.Identity, date string, at time.Time) (Result, error) {
	open, err := p.store.FindOpen(ctx, id.UserID, date)
	if err != nil {
		return Result{}, fmt.Errorf("open session lookup: %w", err)
	}

	if open == nil {
		if p.maxSessions > 0 {
			closed, err := p.store.CountClosed(ctx, id.UserID, date)
			if err != nil {
				return Result{}, fmt.Errorf("session count: %w", err)
			}
			if closed >= p.maxSessions {
				return Result{}, ErrDayComplete
			}
		}
		rec, err := p.store.Insert(ctx, Record{
			UserID:  id.UserID,
			Name:    id.Name,
			Role:    id.Role,
			StaffID: id.StaffID,
			Date:    date,
			LoginAt: at,
		})
		if err != nil {
			return Result{}, fmt.Errorf("open session: %w", err)
		}
		return Result{Kind: KindIn, Record: &rec}, nil
	}

	// Whole minutes, floored.
	minutes := int(at.Sub(open.LoginAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if err := p.store.CloseSession(ctx, open.ID, at, minutes); err != nil {
		return Result{}, fmt.Errorf("close session: %w", err)
	}
	logout := at
	open.LogoutAt = &logout
	open.Minutes = &minutes

	kind := KindOut
	if p.maxSessions > 0 {
		closed, err := p.store.CountClosed(ctx, id.UserID, date)
		if err == nil && closed >= p.maxSessions {
			kind = KindDayComplete
		}
	}
	return Result{Kind: kind, Record: open}, nil
}
