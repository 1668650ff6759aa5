package domain

import "time"

// AvailabilityWindow is a coach's recurring working-hours block for one
// weekday. It is read-only input owned by the coach-profile service;
// start and end are minutes from midnight in the coach's local day.
type AvailabilityWindow struct {
	CoachID  string
	Weekday  time.Weekday
	StartMin int
	EndMin   int
}

// Slot is a candidate fixed-duration booking window offered to a client.
type Slot struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes"`
}
