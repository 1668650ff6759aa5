package domain

type Role string

const (
	RoleParticipant Role = "participant"
	RoleCoach       Role = "coach"
)

func (r Role) Valid() bool {
	return r == RoleParticipant || r == RoleCoach
}

// Other returns the counterpart role within an appointment.
func (r Role) Other() Role {
	if r == RoleCoach {
		return RoleParticipant
	}
	return RoleCoach
}

// Principal is the authenticated caller as supplied by the identity
// provider. This core never issues or stores credentials.
type Principal struct {
	ID   string
	Role Role
}
