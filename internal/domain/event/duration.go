package event

import (
	"strings"
	"time"
)

var expectedDurationBySport = map[string]time.Duration{
	"FOOTBALL":     2 * time.Hour,
	"FUTSAL":       90 * time.Minute,
	"BASKETBALL":   2 * time.Hour,
	"HANDBALL":     2 * time.Hour,
	"TENNIS":       3 * time.Hour,
	"TABLE TENNIS": time.Hour,
	"BADMINTON":    time.Hour,
	"MOTORSPORT":   2 * time.Hour,
	"MOTORCYCLING": 2 * time.Hour,
	"CYCLING":      5 * time.Hour,
	"GOLF":         6 * time.Hour,
}

// ExpectedDuration returns the scheduled length assumed for a sport
// when the source reports no end time.
func ExpectedDuration(sport string) time.Duration {
	if d, ok := expectedDurationBySport[strings.ToUpper(strings.TrimSpace(sport))]; ok {
		return d
	}
	return 2 * time.Hour
}

// ProjectedEnd is the effective end instant including any overrun
// extension already granted.
func (r Record) ProjectedEnd() time.Time {
	return r.StartAt.Add(ExpectedDuration(r.Sport)).Add(time.Duration(r.OverrunMinutes) * time.Minute)
}
