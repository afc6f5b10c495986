package calculator

import (
	"sort"
	"time"
)

// Direction tells who owes whom for one transaction.
type Direction string

const (
	// ToMe means the party owes the payer.
	ToMe Direction = "toMe"
	// ToEntity means the payer owes the party.
	ToEntity Direction = "toEntity"
)

// Sign returns +1 for ToMe and -1 for ToEntity.
func (d Direction) Sign() float64 {
	if d == ToEntity {
		return -1
	}
	return 1
}

// Movement is one dated amount to replay into a running balance.
type Movement struct {
	Date      time.Time
	Amount    float64
	Direction Direction
	Settled   bool
}

// Stats summarises what a party owes and is owed.
//
// Totals ignore settlement; the Open figures only count unsettled movements.
type Stats struct {
	TotalOwedToMe float64 `json:"total_owed_to_me"`
	TotalIOwe     float64 `json:"total_i_owe"`
	Net           float64 `json:"net"`
	OpenOwedToMe  float64 `json:"open_owed_to_me"`
	OpenIOwe      float64 `json:"open_i_owe"`
	OpenNet       float64 `json:"open_net"`
}

// Point is one day of a running balance series.
type Point struct {
	Date    time.Time `json:"date"`
	Balance float64   `json:"balance"`
}

// Summarize aggregates movements into Stats.
func Summarize(movements []Movement) Stats {
	var s Stats
	for _, m := range movements {
		switch m.Direction {
		case ToMe:
			s.TotalOwedToMe += m.Amount
			if !m.Settled {
				s.OpenOwedToMe += m.Amount
			}
		case ToEntity:
			s.TotalIOwe += m.Amount
			if !m.Settled {
				s.OpenIOwe += m.Amount
			}
		}
	}
	s.Net = s.TotalOwedToMe - s.TotalIOwe
	s.OpenNet = s.OpenOwedToMe - s.OpenIOwe
	return s
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month at midnight UTC.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// RunningBalance replays movements in date order and returns one point per
// calendar day, from the month start of the earliest movement through
// today inclusive. Days without movements repeat the previous balance.
//
// Movements dated after today are never applied. An empty input yields an
// empty, non-nil series.
func RunningBalance(movements []Movement, today time.Time) []Point {
	if len(movements) == 0 {
		return []Point{}
	}

	sorted := make([]Movement, len(movements))
	copy(sorted, movements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	start := MonthStart(sorted[0].Date)
	end := Day(today)
	if end.Before(start) {
		return []Point{}
	}

	points := make([]Point, 0, int(end.Sub(start).Hours()/24)+1)
	var balance float64
	next := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for next < len(sorted) && !Day(sorted[next].Date).After(day) {
			balance += sorted[next].Direction.Sign() * sorted[next].Amount
			next++
		}
		points = append(points, Point{Date: day, Balance: balance})
	}
	return points
}
