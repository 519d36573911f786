package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchclock/internal/summary"
)

func ts(date, hhmm string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", date+" "+hhmm)
	return t
}

func sampleRows() []summary.PersonDay {
	out := ts("2025-03-10", "18:30")
	return []summary.PersonDay{
		{
			UserID: "u1", Name: "Meera Pillai", Role: "admin", StaffID: "AD-01",
			Date: "2025-03-10", Sessions: 1, FirstIn: ts("2025-03-10", "08:55"),
			LastOut: &out, TotalMinutes: 575,
		},
		{
			UserID: "u2", Name: "Anjali Menon", Role: "trainee",
			Date: "2025-03-10", Sessions: 1, FirstIn: ts("2025-03-10", "09:20"),
			TotalMinutes: 0, ActiveNow: true,
		},
	}
}

func TestCSVLayout(t *testing.T) {
	got, err := CSV(sampleRows(), Config{ExpectedStart: "09:00"})
	require.NoError(t, err)

	want := "date,role,name,staff_id,first_in,last_out,total,arrival\n" +
		"2025-03-10,admin,Meera Pillai,AD-01,08:55,18:30,9h 35m,on_time\n" +
		"2025-03-10,trainee,Anjali Menon,,09:20,,0m,late\n"
	assert.Equal(t, want, string(got))
}

func TestCSVIsDeterministic(t *testing.T) {
	cfg := Config{ExpectedStart: "09:00"}
	a, err := CSV(sampleRows(), cfg)
	require.NoError(t, err)
	b, err := CSV(sampleRows(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same records and range must produce byte-identical output")
}

func TestArrivalFlag(t *testing.T) {
	tests := []struct {
		name    string
		firstIn string
		want    string
	}{
		{"early", "08:40", "on_time"},
		{"exactly on time", "09:00", "on_time"},
		{"late", "09:01", "late"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := arrivalFlag(ts("2025-03-10", tt.firstIn), "09:00")
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, arrivalFlag(ts("2025-03-10", "09:00"), "not-a-time"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "work_hours_2025-03-01_to_2025-03-31.csv", Filename("2025-03-01", "2025-03-31"))
}

func TestXLSXMirrorsCSV(t *testing.T) {
	f, err := XLSX(sampleRows(), Config{ExpectedStart: "09:00"})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "date", rows[0][0])
	assert.Equal(t, "Meera Pillai", rows[1][2])
	assert.Equal(t, "9h 35m", rows[1][6])
	assert.Equal(t, "late", rows[2][7])
}
