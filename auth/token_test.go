package auth

import (
	"testing"
	"time"

	"quitcoach/domain"

	"github.com/stretchr/testify/require"
)

func Test_Generate_And_Validate_Roundtrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Generate(domain.Principal{ID: "part-1", Role: domain.RoleParticipant})
	req.NoError(err)

	p, err := tokens.Validate(signed)
	req.NoError(err)
	req.Equal("part-1", p.ID)
	req.Equal(domain.RoleParticipant, p.Role)
}

func Test_Validate_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	signed, err := NewTokens("secret-a", time.Hour).Generate(domain.Principal{ID: "coach-1", Role: domain.RoleCoach})
	req.NoError(err)

	_, err = NewTokens("secret-b", time.Hour).Validate(signed)
	req.Error(err)
}

func Test_Validate_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", -time.Minute)

	signed, err := tokens.Generate(domain.Principal{ID: "part-1", Role: domain.RoleParticipant})
	req.NoError(err)

	_, err = tokens.Validate(signed)
	req.Error(err)
}

func Test_Validate_Rejects_Unknown_Role(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Generate(domain.Principal{ID: "x", Role: domain.Role("admin")})
	req.NoError(err)

	_, err = tokens.Validate(signed)
	req.Error(err)
}
