package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Mask_Replaces_Disallowed_Words(t *testing.T) {
	req := require.New(t)
	moderator, err := NewFromWords([]string{"idiot", "shut up"}, '*')
	req.NoError(err)

	req.Equal("I felt like an *****", moderator.Mask("I felt like an idiot"))
	req.Equal("just ******* already", moderator.Mask("just shut up already"))
}

func Test_Mask_Handles_Substitutions_And_Case(t *testing.T) {
	req := require.New(t)
	moderator, err := NewFromWords([]string{"idiot"}, '*')
	req.NoError(err)

	req.Equal("*****", moderator.Mask("IdIoT"))
	req.Equal("*****", moderator.Mask("1d10t"))
}

func Test_Mask_Leaves_Clean_Text_Untouched(t *testing.T) {
	req := require.New(t)
	moderator, err := NewFromWords([]string{"idiot"}, '*')
	req.NoError(err)

	text := "day 12 without a cigarette, feeling good"
	req.Equal(text, moderator.Mask(text))
}

func Test_Default_WordList_Loads(t *testing.T) {
	req := require.New(t)
	moderator, err := New('*')
	req.NoError(err)
	req.NotEqual("what the hell", moderator.Mask("what the hell"))
}
