package livesync

import (
	"fmt"
	"slices"
	"time"

	"github.com/deevus/clinic-tui/source"
	"github.com/spf13/cast"
)

// Resources and columns read by the dashboard.
const (
	StatsResource      = "dashboard_stats"
	EncountersResource = "recent_encounters"

	// RecentLimit bounds the recent encounters list.
	RecentLimit = 4

	clockFormat = "15:04"
	noClock     = "--:--"
)

// Stats are the dashboard summary counters. Loaded is false until the
// first successful fetch; the three counters are always replaced together.
type Stats struct {
	Loaded            bool
	PatientsCheckedIn int
	EncountersToday   int
	PendingReferrals  int
}

// Encounter is one row of the recent encounters list.
type Encounter struct {
	ID        string
	Patient   string
	Complaint string
	Time      string // HH:MM, 24-hour, in the engine's location
	At        time.Time
}

func statsQuery() source.Query {
	return source.Query{
		Resource: StatsResource,
		Columns:  []string{"patients_checked_in", "encounters_today", "pending_referrals"},
		Limit:    1,
	}
}

func encountersQuery() source.Query {
	return source.Query{
		Resource: EncountersResource,
		Columns:  []string{"id", "patient_name", "complaint", "encounter_time"},
		Order:    &source.Order{Column: "encounter_time", Descending: true},
		Limit:    RecentLimit,
	}
}

// decodeStats maps the stats query result. No row reads as all zeros and
// missing or null counters read as zero.
func decodeStats(rows []source.Row) Stats {
	s := Stats{Loaded: true}
	if len(rows) == 0 {
		return s
	}
	r := rows[0]
	s.PatientsCheckedIn = cast.ToInt(r["patients_checked_in"])
	s.EncountersToday = cast.ToInt(r["encounters_today"])
	s.PendingReferrals = cast.ToInt(r["pending_referrals"])
	return s
}

// decodeEncounters maps rows to encounters, newest first, at most
// RecentLimit of them.
func decodeEncounters(rows []source.Row, loc *time.Location) []Encounter {
	out := make([]Encounter, 0, len(rows))
	for _, r := range rows {
		e := Encounter{
			ID:        cast.ToString(r["id"]),
			Patient:   cast.ToString(r["patient_name"]),
			Complaint: cast.ToString(r["complaint"]),
			Time:      noClock,
		}
		// Times without a zone are wall clock times at the clinic.
		if at, err := cast.ToTimeInDefaultLocationE(r["encounter_time"], loc); err == nil && !at.IsZero() {
			e.At = at
			e.Time = at.In(loc).Format(clockFormat)
		}
		out = append(out, e)
	}
	// Rows without a parseable time sort last.
	slices.SortStableFunc(out, func(a, b Encounter) int {
		return b.At.Compare(a.At)
	})
	if len(out) > RecentLimit {
		out = out[:RecentLimit]
	}
	return out
}

// QueryError reports a failed dashboard query. Previous values of the
// entity it feeds are kept.
type QueryError struct {
	Resource string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Resource, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// SubscribeError reports a failed change feed registration. The engine
// keeps serving the last fetched values without live updates.
type SubscribeError struct {
	Resource string
	Err      error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Resource, e.Err)
}

func (e *SubscribeError) Unwrap() error { return e.Err }
