package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchclock/internal/punch"
)

func ts(hhmm string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", "2025-03-10 "+hhmm)
	return t
}

func closed(user, name, role, date, in, out string) punch.Record {
	login, logout := ts(in), ts(out)
	minutes := int(logout.Sub(login) / time.Minute)
	return punch.Record{
		UserID: user, Name: name, Role: role, Date: date,
		LoginAt: login, LogoutAt: &logout, Minutes: &minutes,
	}
}

func open(user, name, role, date, in string) punch.Record {
	return punch.Record{UserID: user, Name: name, Role: role, Date: date, LoginAt: ts(in)}
}

func TestFullDayWithLunchBreak(t *testing.T) {
	recs := []punch.Record{
		closed("u1", "Anjali Menon", "trainee", "2025-03-10", "09:00", "13:00"),
		closed("u1", "Anjali Menon", "trainee", "2025-03-10", "14:00", "18:30"),
	}

	out := Build(recs)
	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, ts("09:00"), s.FirstIn)
	require.NotNil(t, s.LastOut)
	assert.Equal(t, ts("18:30"), *s.LastOut)
	assert.Equal(t, 510, s.TotalMinutes)
	assert.False(t, s.ActiveNow)
}

func TestSingleOpenSession(t *testing.T) {
	out := Build([]punch.Record{open("u1", "Anjali Menon", "trainee", "2025-03-10", "09:05")})
	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, ts("09:05"), s.FirstIn)
	assert.Nil(t, s.LastOut)
	assert.Zero(t, s.TotalMinutes)
	assert.True(t, s.ActiveNow)
}

func TestOpenSessionDoesNotAffectTotal(t *testing.T) {
	recs := []punch.Record{
		closed("u1", "Anjali Menon", "trainee", "2025-03-10", "09:00", "12:00"),
		open("u1", "Anjali Menon", "trainee", "2025-03-10", "13:00"),
	}
	out := Build(recs)
	require.Len(t, out, 1)
	assert.Equal(t, 180, out[0].TotalMinutes)
	assert.True(t, out[0].ActiveNow)
	require.NotNil(t, out[0].LastOut)
	assert.Equal(t, ts("12:00"), *out[0].LastOut)
}

func TestOrderingIsRolePriorityThenName(t *testing.T) {
	recs := []punch.Record{
		open("u4", "Zara Thomas", "trainee", "2025-03-10", "09:00"),
		open("u2", "Binu George", "trainer", "2025-03-10", "09:00"),
		open("u3", "Arun Nair", "trainer", "2025-03-10", "09:00"),
		open("u1", "Meera Pillai", "admin", "2025-03-10", "09:00"),
	}
	out := Build(recs)
	require.Len(t, out, 4)
	var names []string
	for _, s := range out {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Meera Pillai", "Arun Nair", "Binu George", "Zara Thomas"}, names)
}

func TestOrderingStableUnderInputPermutation(t *testing.T) {
	recs := []punch.Record{
		closed("u1", "Anjali Menon", "trainee", "2025-03-10", "09:00", "12:00"),
		open("u2", "Binu George", "trainer", "2025-03-10", "09:30"),
		closed("u3", "Meera Pillai", "admin", "2025-03-11", "10:00", "11:00"),
	}
	reversed := []punch.Record{recs[2], recs[1], recs[0]}

	assert.Equal(t, Build(recs), Build(reversed))
}

func TestMultiDayGroupsPerDate(t *testing.T) {
	recs := []punch.Record{
		closed("u1", "Anjali Menon", "trainee", "2025-03-10", "09:00", "17:00"),
		closed("u1", "Anjali Menon", "trainee", "2025-03-11", "09:30", "17:30"),
	}
	out := Build(recs)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-03-10", out[0].Date)
	assert.Equal(t, "2025-03-11", out[1].Date)
	assert.Equal(t, 480, out[0].TotalMinutes)
	assert.Equal(t, 480, out[1].TotalMinutes)
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		total int
		want  string
	}{
		{0, "0m"},
		{-5, "0m"},
		{45, "45m"},
		{60, "1h 0m"},
		{510, "8h 30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMinutes(tt.total))
	}
}
