package punch

import (
	"errors"
	"time"
)

// DateLayout is the calendar-date key used throughout the subsystem.
const DateLayout = "2006-01-02"

// Kind classifies the outcome of a scan.
type Kind string

const (
	KindIn          Kind = "IN"
	KindOut         Kind = "OUT"
	KindDayComplete Kind = "DAY_COMPLETE"
	KindRejected    Kind = "REJECTED"
)

var (
	// ErrInvalidToken means the scanned value does not match the current secret.
	ErrInvalidToken = errors.New("punch token does not match current secret")
	// ErrOutOfRange means the device location fell outside the geofence.
	ErrOutOfRange = errors.New("scan location outside institute geofence")
	// ErrConflict means another scan for the same user and date held the lock.
	ErrConflict = errors.New("concurrent scan in progress for user")
	// ErrDayComplete means the configured session cap for the day is already met.
	ErrDayComplete = errors.New("work day already complete")
)

// Record is one work session for a user on a calendar date. A record with no
// logout timestamp is an open, in-progress session. Once closed it is immutable
// except for administrative correction.
type Record struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	StaffID string `json:"staff_id,omitempty"`

	Date     string     `json:"date"`
	LoginAt  time.Time  `json:"login_at"`
	LogoutAt *time.Time `json:"logout_at,omitempty"`
	Minutes  *int       `json:"minutes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Open reports whether the session has not been closed yet.
func (r Record) Open() bool {
	return r.LogoutAt == nil
}
