package scan

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchclock/internal/auth"
	"punchclock/internal/punch"
	"punchclock/internal/token"
)

// In-memory punch store, enough for driving the full scan flow.
type memStore struct {
	mu   sync.Mutex
	recs []*punch.Record
	next int
}

func (m *memStore) FindOpen(_ context.Context, userID, date string) (*punch.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if r.UserID == userID && r.Date == date && r.LogoutAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(_ context.Context, rec punch.Record) (punch.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	rec.ID = "r" + strconv.Itoa(m.next)
	cp := rec
	m.recs = append(m.recs, &cp)
	return rec, nil
}

func (m *memStore) CloseSession(_ context.Context, id string, logoutAt time.Time, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == id && r.LogoutAt == nil {
			t := logoutAt
			mm := minutes
			r.LogoutAt = &t
			r.Minutes = &mm
			return nil
		}
	}
	return punch.ErrConflict
}

func (m *memStore) CountClosed(_ context.Context, userID, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recs {
		if r.UserID == userID && r.Date == date && r.LogoutAt != nil {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListRange(_ context.Context, start, end string) ([]punch.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []punch.Record
	for _, r := range m.recs {
		if r.Date >= start && r.Date <= end {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestScanFlowAgainstRealProcessor(t *testing.T) {
	ctx := context.Background()
	authority := token.NewAuthority(token.NewMemoryStore())
	cur, err := authority.Current(ctx)
	require.NoError(t, err)

	processor := punch.NewProcessor(&memStore{}, authority, nil, nil, 0)
	identity := auth.Identity{UserID: "u1", Name: "Anjali Menon", Role: "trainee"}

	when := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	puncher := ProcessorPuncher{
		Processor: processor,
		Identity:  identity,
		Now:       func() time.Time { return when },
	}

	// First scan session: punch in.
	c := NewController(newFakeCamera(cur.Value), nil, puncher, time.Second)
	out := c.Run(ctx)
	require.NoError(t, out.Err)
	assert.Equal(t, punch.KindIn, out.Result.Kind)
	require.NoError(t, c.Reset())

	// Second session on the same controller: punch out with a computed duration.
	when = when.Add(4 * time.Hour)
	c2 := NewController(newFakeCamera(cur.Value), nil, puncher, time.Second)
	out = c2.Run(ctx)
	require.NoError(t, out.Err)
	assert.Equal(t, punch.KindOut, out.Result.Kind)
	require.NotNil(t, out.Result.Record.Minutes)
	assert.Equal(t, 240, *out.Result.Record.Minutes)
}

func TestScanFlowRejectsRotatedToken(t *testing.T) {
	ctx := context.Background()
	authority := token.NewAuthority(token.NewMemoryStore())
	old, err := authority.Current(ctx)
	require.NoError(t, err)
	_, err = authority.Rotate(ctx)
	require.NoError(t, err)

	processor := punch.NewProcessor(&memStore{}, authority, nil, nil, 0)
	puncher := ProcessorPuncher{
		Processor: processor,
		Identity:  auth.Identity{UserID: "u1", Name: "Anjali Menon", Role: "trainee"},
	}

	c := NewController(newFakeCamera(old.Value), nil, puncher, time.Second)
	out := c.Run(ctx)
	assert.ErrorIs(t, out.Err, punch.ErrInvalidToken)
	require.NotNil(t, out.Result)
	assert.Equal(t, punch.KindRejected, out.Result.Kind)
	assert.Equal(t, StateResult, c.State())
}
