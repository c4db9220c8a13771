// Package analytics rolls stress logs up into dashboard statistics.
//
// Every function is total: an empty input reports ErrNoData rather than a
// zero value. Scope (self, team, organisation) is decided by the caller,
// which passes an already filtered slice.
package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"stressguard/internal/models"
)

var (
	ErrNoData           = errors.New("no data")
	ErrInsufficientData = errors.New("at least two logs are required")
)

const (
	WeeklyWindowDays  = 7
	MonthlyWindowDays = 30
	trendWindow       = 7
	trendTolerance    = 5
)

type Trend string

const (
	TrendIncreasing Trend = "Increasing"
	TrendDecreasing Trend = "Decreasing"
	TrendStable     Trend = "Stable"
)

// Current returns the score of the most recent log.
func Current(logs []models.StressLog) (int, error) {
	if len(logs) == 0 {
		return 0, ErrNoData
	}
	ordered := chronological(logs)
	return ordered[len(ordered)-1].Score, nil
}

// Average returns the mean score rounded to one decimal place.
func Average(logs []models.StressLog) (float64, error) {
	if len(logs) == 0 {
		return 0, ErrNoData
	}
	return round1(mean(logs)), nil
}

// Peak returns the highest score.
func Peak(logs []models.StressLog) (int, error) {
	if len(logs) == 0 {
		return 0, ErrNoData
	}
	peak := logs[0].Score
	for _, l := range logs[1:] {
		if l.Score > peak {
			peak = l.Score
		}
	}
	return peak, nil
}

// WindowedAverage averages the logs created within windowDays before now.
func WindowedAverage(logs []models.StressLog, windowDays int, now time.Time) (float64, error) {
	return Average(Window(logs, windowDays, now))
}

// Window keeps the logs created at or after now minus windowDays.
func Window(logs []models.StressLog, windowDays int, now time.Time) []models.StressLog {
	cutoff := now.AddDate(0, 0, -windowDays)
	var in []models.StressLog
	for _, l := range logs {
		if !l.CreatedAt.Before(cutoff) {
			in = append(in, l)
		}
	}
	return in
}

// TrendOf compares the last and first of the most recent seven logs.
func TrendOf(logs []models.StressLog) (Trend, error) {
	if len(logs) < 2 {
		return "", ErrInsufficientData
	}
	ordered := chronological(logs)
	if len(ordered) > trendWindow {
		ordered = ordered[len(ordered)-trendWindow:]
	}
	first, last := ordered[0].Score, ordered[len(ordered)-1].Score
	switch {
	case last > first+trendTolerance:
		return TrendIncreasing, nil
	case last < first-trendTolerance:
		return TrendDecreasing, nil
	default:
		return TrendStable, nil
	}
}

// CountAtOrAbove counts logs whose score is at least cutoff.
func CountAtOrAbove(logs []models.StressLog, cutoff int) int {
	n := 0
	for _, l := range logs {
		if l.Score >= cutoff {
			n++
		}
	}
	return n
}

// RiskEntry is a user whose mean score reached the burnout threshold.
type RiskEntry struct {
	UserID    int64   `json:"user_id"`
	Username  string  `json:"username,omitempty"`
	MeanScore float64 `json:"mean_score"`
	LogCount  int     `json:"log_count"`
}

// BurnoutRisk groups logs per user and returns those whose mean score is at
// least threshold, highest mean first.
func BurnoutRisk(logs []models.StressLog, threshold float64) []RiskEntry {
	type acc struct {
		username string
		sum      int
		n        int
	}
	byUser := make(map[int64]*acc)
	for _, l := range logs {
		a := byUser[l.UserID]
		if a == nil {
			a = &acc{}
			byUser[l.UserID] = a
		}
		if a.username == "" {
			a.username = l.Username
		}
		a.sum += l.Score
		a.n++
	}

	var out []RiskEntry
	for id, a := range byUser {
		m := float64(a.sum) / float64(a.n)
		if m >= threshold {
			out = append(out, RiskEntry{UserID: id, Username: a.username, MeanScore: round1(m), LogCount: a.n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanScore != out[j].MeanScore {
			return out[i].MeanScore > out[j].MeanScore
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Summary bundles the dashboard statistics. Nil fields mean no data.
type Summary struct {
	Count          int      `json:"count"`
	Current        *int     `json:"current"`
	Average        *float64 `json:"average"`
	Peak           *int     `json:"peak"`
	WeeklyAverage  *float64 `json:"weekly_average"`
	MonthlyAverage *float64 `json:"monthly_average"`
	Trend          *Trend   `json:"trend"`
}

func Summarize(logs []models.StressLog, now time.Time) Summary {
	s := Summary{Count: len(logs)}
	if v, err := Current(logs); err == nil {
		s.Current = &v
	}
	if v, err := Average(logs); err == nil {
		s.Average = &v
	}
	if v, err := Peak(logs); err == nil {
		s.Peak = &v
	}
	if v, err := WindowedAverage(logs, WeeklyWindowDays, now); err == nil {
		s.WeeklyAverage = &v
	}
	if v, err := WindowedAverage(logs, MonthlyWindowDays, now); err == nil {
		s.MonthlyAverage = &v
	}
	if v, err := TrendOf(logs); err == nil {
		s.Trend = &v
	}
	return s
}

func chronological(logs []models.StressLog) []models.StressLog {
	ordered := make([]models.StressLog, len(logs))
	copy(ordered, logs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

func mean(logs []models.StressLog) float64 {
	sum := 0
	for _, l := range logs {
		sum += l.Score
	}
	return float64(sum) / float64(len(logs))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
