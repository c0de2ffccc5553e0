package sprint

import (
	"math"
	"time"

	"github.com/zulandar/scrumban/internal/models"
)

const day = 24 * time.Hour

// Point is one day of a burndown chart. Actual is nil for days after now.
type Point struct {
	Day    int       `json:"day"`
	Date   time.Time `json:"date"`
	Ideal  int       `json:"ideal"`
	Actual *int      `json:"actual"`
}

// Pace compares completed work with the ideal line.
type Pace string

const (
	PaceNeutral Pace = "neutral"
	PaceAhead   Pace = "ahead"
	PaceOnTrack Pace = "on_track"
	PaceBehind  Pace = "behind"
)

// ComputeProgress returns how far through its time window a sprint is, as
// a percentage in [0, 100]. Completed sprints are 100 and planning sprints
// 0; an active sprint interpolates linearly between its start and end.
func ComputeProgress(s *models.Sprint, now time.Time) int {
	switch s.Status {
	case models.SprintCompleted:
		return 100
	case models.SprintActive:
	default:
		return 0
	}
	if now.After(s.EndDate) {
		return 100
	}
	if now.Before(s.StartDate) {
		return 0
	}
	total := s.EndDate.Sub(s.StartDate)
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(float64(now.Sub(s.StartDate)) / float64(total) * 100))
	return clamp(pct, 0, 100)
}

// Duration is the sprint length in days, counting both the first and the
// last day.
func Duration(s *models.Sprint) int {
	return daysBetween(s.EndDate, s.StartDate) + 1
}

// elapsedDays is the number of whole days since the start, capped at the
// duration. A completed sprint counts as fully elapsed.
func elapsedDays(s *models.Sprint, now time.Time) int {
	d := Duration(s)
	if s.Status == models.SprintCompleted {
		return d
	}
	if e := daysBetween(now, s.StartDate); e < d {
		return e
	}
	return d
}

// IdealCompleted is how many of total tasks the ideal line expects done by
// now.
func IdealCompleted(s *models.Sprint, total int, now time.Time) int {
	d := Duration(s)
	if d <= 0 {
		return total
	}
	ideal := int(math.Round(float64(elapsedDays(s, now)) / float64(d) * float64(total)))
	if ideal > total {
		return total
	}
	return ideal
}

// Evaluate classifies completed work against the ideal line: ahead when
// more is done than expected, on track down to 80% of the expectation,
// behind below that.
func Evaluate(s *models.Sprint, completed, total int, now time.Time) Pace {
	if total == 0 {
		return PaceNeutral
	}
	ideal := IdealCompleted(s, total, now)
	switch {
	case completed > ideal:
		return PaceAhead
	case float64(completed) >= float64(ideal)*0.8:
		return PaceOnTrack
	default:
		return PaceBehind
	}
}

// GenerateBurndown returns one point per sprint day, day 0 being the start
// with every task open. The ideal series decays linearly to zero on the
// last day. No history is stored, so the actual series is an estimate: it
// assumes tasks were completed at a constant rate over the elapsed days and
// never drops below the current remaining count. Days after now have no
// actual value; a completed sprint has values for every day and ends at
// zero. A sprint without tasks has no points.
func GenerateBurndown(s *models.Sprint, completed, total int, now time.Time) []Point {
	if total == 0 {
		return []Point{}
	}
	duration := Duration(s)
	if duration < 1 {
		duration = 1
	}
	elapsed := elapsedDays(s, now)
	done := s.Status == models.SprintCompleted

	points := make([]Point, 0, duration+1)
	start := total
	points = append(points, Point{Day: 0, Date: s.StartDate, Ideal: total, Actual: &start})

	for d := 1; d <= duration; d++ {
		date := s.StartDate.Add(time.Duration(d) * day)
		ideal := total - int(math.Round(float64(d)/float64(duration)*float64(total)))
		p := Point{Day: d, Date: date, Ideal: max(ideal, 0)}

		if !date.After(now) || done {
			actual := total
			switch {
			case done && d == duration:
				actual = 0
			case elapsed > 0:
				rate := float64(completed) / float64(elapsed)
				burned := min(int(math.Round(rate*float64(d))), total)
				actual = max(total-burned, total-completed)
			}
			p.Actual = &actual
		}
		points = append(points, p)
	}
	return points
}

// daysBetween returns the number of whole days from b to a, truncated
// toward zero.
func daysBetween(a, b time.Time) int {
	return int(a.Sub(b) / day)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
