// This file defines conversation messages and their read-receipt rules.
// Messages are immutable once written, except for monotonic read-flag flips.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of an appointment's conversation log.
// IDs are assigned by the store, monotonic per appointment.
type Message struct {
	ID                int64     `json:"id"`
	AppointmentID     uuid.UUID `json:"appointmentId"`
	SenderRole        Role      `json:"senderRole"`
	Text              string    `json:"text"`
	CreatedAt         time.Time `json:"createdAt"`
	ReadByParticipant bool      `json:"readByParticipant"`
	ReadByCoach       bool      `json:"readByCoach"`
}

func (m Message) ReadBy(r Role) bool {
	if r == RoleCoach {
		return m.ReadByCoach
	}
	return m.ReadByParticipant
}

func (m *Message) SetReadBy(r Role) {
	if r == RoleCoach {
		m.ReadByCoach = true
		return
	}
	m.ReadByParticipant = true
}
