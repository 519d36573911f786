// Package summary reduces raw punch records to per-person daily work-hour
// summaries. The reduction is a pure function of the record set so it can be
// recomputed per request and parallelized across date ranges.
package summary

import (
	"fmt"
	"sort"
	"time"

	"punchclock/internal/punch"
)

// PersonDay is the derived summary for one person on one calendar date.
// It is never stored; every aggregation request recomputes it.
type PersonDay struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	StaffID string `json:"staff_id,omitempty"`
	Date    string `json:"date"`

	Sessions     int        `json:"sessions"`
	FirstIn      time.Time  `json:"first_in"`
	LastOut      *time.Time `json:"last_out,omitempty"`
	TotalMinutes int        `json:"total_minutes"`
	ActiveNow    bool       `json:"active_now"`
}

// rolePriority orders summaries for display: administrative roles first, then
// trainers, other staff, then trainees. Unknown roles sort last.
var rolePriority = map[string]int{
	"admin":   0,
	"trainer": 1,
	"staff":   2,
	"trainee": 3,
}

func priority(role string) int {
	if p, ok := rolePriority[role]; ok {
		return p
	}
	return len(rolePriority)
}

// Build groups records by (user, date) and reduces each group. Output order is
// total and deterministic: date, role priority, display name, user id.
func Build(records []punch.Record) []PersonDay {
	type key struct{ userID, date string }
	groups := make(map[key]*PersonDay)

	for _, rec := range records {
		k := key{rec.UserID, rec.Date}
		s, ok := groups[k]
		if !ok {
			s = &PersonDay{
				UserID:  rec.UserID,
				Name:    rec.Name,
				Role:    rec.Role,
				StaffID: rec.StaffID,
				Date:    rec.Date,
				FirstIn: rec.LoginAt,
			}
			groups[k] = s
		}

		s.Sessions++
		if rec.LoginAt.Before(s.FirstIn) {
			s.FirstIn = rec.LoginAt
		}
		if rec.LogoutAt != nil {
			if s.LastOut == nil || rec.LogoutAt.After(*s.LastOut) {
				t := *rec.LogoutAt
				s.LastOut = &t
			}
		} else {
			// An open session keeps the person active and contributes no minutes
			// until it is closed.
			s.ActiveNow = true
		}
		if rec.Minutes != nil {
			s.TotalMinutes += *rec.Minutes
		}
	}

	out := make([]PersonDay, 0, len(groups))
	for _, s := range groups {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if pa, pb := priority(a.Role), priority(b.Role); pa != pb {
			return pa < pb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})
	return out
}

// FormatMinutes renders a total as "{h}h {m}m", dropping the hour component
// when zero. Zero or negative totals render as "0m".
func FormatMinutes(total int) string {
	if total <= 0 {
		return "0m"
	}
	h, m := total/60, total%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
