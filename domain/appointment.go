// Package domain contains core concepts of the coaching appointment system.
// Appointments move through a fixed status lifecycle and keep an append-only
// history of every transition.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// Blocking reports whether an appointment in this status occupies its time
// window for conflict purposes.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusRescheduled},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another. Completed, cancelled and rescheduled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HistoryEntry records one lifecycle action. History is append-only and
// never mutated after the fact.
type HistoryEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type Rating struct {
	Score    int       `json:"score"`
	Feedback string    `json:"feedback"`
	RatedAt  time.Time `json:"ratedAt"`
}

type Appointment struct {
	ID              uuid.UUID      `json:"id"`
	ParticipantID   string         `json:"participantId"`
	CoachID         string         `json:"coachId"`
	ScheduledStart  time.Time      `json:"scheduledStart"`
	DurationMinutes int            `json:"durationMinutes"`
	Status          Status         `json:"status"`
	Notes           string         `json:"notes,omitempty"`
	Rating          *Rating        `json:"rating,omitempty"`
	History         []HistoryEntry `json:"history"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (a Appointment) End() time.Time {
	return a.ScheduledStart.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps tests half-open interval intersection [start, start+duration)
// against the appointment's own window.
func (a Appointment) Overlaps(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	return a.ScheduledStart.Before(end) && start.Before(a.End())
}

// PartyRole resolves which side of the appointment a principal is on.
// The second return is false when the principal is not a party at all.
func (a Appointment) PartyRole(p Principal) (Role, bool) {
	switch {
	case p.Role == RoleParticipant && p.ID == a.ParticipantID:
		return RoleParticipant, true
	case p.Role == RoleCoach && p.ID == a.CoachID:
		return RoleCoach, true
	default:
		return "", false
	}
}

func (a *Appointment) AppendHistory(action, actor, detail string, at time.Time) {
	a.History = append(a.History, HistoryEntry{
		Action: action,
		Actor:  actor,
		Detail: detail,
		At:     at,
	})
	a.UpdatedAt = at
}
