package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Lifecycle_Transitions(t *testing.T) {
	req := require.New(t)

	req.True(CanTransition(StatusPending, StatusConfirmed))
	req.True(CanTransition(StatusPending, StatusCancelled))
	req.True(CanTransition(StatusPending, StatusRescheduled))
	req.True(CanTransition(StatusConfirmed, StatusCompleted))
	req.True(CanTransition(StatusConfirmed, StatusCancelled))

	// Pending sessions have not happened, they cannot complete.
	req.False(CanTransition(StatusPending, StatusCompleted))

	for _, terminal := range []Status{StatusCompleted, StatusCancelled, StatusRescheduled} {
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled} {
			req.False(CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
}

func Test_Overlap_Is_Half_Open(t *testing.T) {
	req := require.New(t)
	appt := Appointment{
		ScheduledStart:  time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC),
		DurationMinutes: 120,
	}

	req.True(appt.Overlaps(time.Date(2026, 9, 14, 14, 0, 0, 0, time.UTC), time.Hour))
	req.True(appt.Overlaps(time.Date(2026, 9, 14, 12, 30, 0, 0, time.UTC), time.Hour))

	// Back to back on either side is not a conflict.
	req.False(appt.Overlaps(time.Date(2026, 9, 14, 15, 0, 0, 0, time.UTC), time.Hour))
	req.False(appt.Overlaps(time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC), time.Hour))
}

func Test_Party_Role_Resolution(t *testing.T) {
	req := require.New(t)
	appt := Appointment{ParticipantID: "part-1", CoachID: "coach-1"}

	role, ok := appt.PartyRole(Principal{ID: "part-1", Role: RoleParticipant})
	req.True(ok)
	req.Equal(RoleParticipant, role)

	role, ok = appt.PartyRole(Principal{ID: "coach-1", Role: RoleCoach})
	req.True(ok)
	req.Equal(RoleCoach, role)

	// Same id on the wrong side grants nothing.
	_, ok = appt.PartyRole(Principal{ID: "coach-1", Role: RoleParticipant})
	req.False(ok)
	_, ok = appt.PartyRole(Principal{ID: "part-2", Role: RoleParticipant})
	req.False(ok)
}
