package repositories

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quitcoach/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Append_Assigns_Monotonic_Ids(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	apptID := uuid.New()
	at := time.Now().UTC()

	texts := []string{"ready for tomorrow?", "yes, day 12 without smoking", "great, keep it up"}
	roles := []domain.Role{domain.RoleCoach, domain.RoleParticipant, domain.RoleCoach}
	for i, text := range texts {
		msg, err := repo.Append(ctx, apptID, roles[i], text, at.Add(time.Duration(i)*time.Second))
		req.NoError(err)
		req.Equal(int64(i+1), msg.ID)
		req.True(msg.ReadBy(roles[i]), "sender's own flag starts true")
		req.False(msg.ReadBy(roles[i].Other()))
	}

	messages, err := repo.List(ctx, apptID)
	req.NoError(err)
	req.Len(messages, len(texts))
	for i, msg := range messages {
		req.Equal(int64(i+1), msg.ID)
		req.Equal(texts[i], msg.Text)
	}
}

func Test_Logs_Are_Isolated_Per_Appointment(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()
	at := time.Now().UTC()

	_, err := repo.Append(ctx, first, domain.RoleCoach, "hello", at)
	req.NoError(err)
	msg, err := repo.Append(ctx, second, domain.RoleCoach, "hello", at)
	req.NoError(err)
	req.Equal(int64(1), msg.ID, "sequences are per appointment")

	messages, err := repo.List(ctx, first)
	req.NoError(err)
	req.Len(messages, 1)
}

func Test_Concurrent_Appends_Keep_Unique_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	apptID := uuid.New()

	const senders = 4
	const perSender = 5
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			role := domain.RoleCoach
			if s%2 == 0 {
				role = domain.RoleParticipant
			}
			for i := 0; i < perSender; i++ {
				_, err := repo.Append(ctx, apptID, role, "msg", time.Now().UTC())
				require.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	messages, err := repo.List(ctx, apptID)
	req.NoError(err)
	req.Len(messages, senders*perSender)
	for i, msg := range messages {
		req.Equal(int64(i+1), msg.ID)
	}
}

func Test_MarkRead_Flips_Only_Counterpart_Messages(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	apptID := uuid.New()
	at := time.Now().UTC()

	_, err := repo.Append(ctx, apptID, domain.RoleCoach, "how was the week?", at)
	req.NoError(err)
	_, err = repo.Append(ctx, apptID, domain.RoleParticipant, "two cravings, resisted both", at.Add(time.Second))
	req.NoError(err)

	flipped, err := repo.MarkRead(ctx, apptID, domain.RoleParticipant)
	req.NoError(err)
	req.Equal(1, flipped)

	messages, err := repo.List(ctx, apptID)
	req.NoError(err)
	req.True(messages[0].ReadByParticipant)
	req.True(messages[0].ReadByCoach, "sender flag was already true")
	req.False(messages[1].ReadByCoach, "participant's message stays unread by coach")
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()
	apptID := uuid.New()

	_, err := repo.Append(ctx, apptID, domain.RoleCoach, "checking in", time.Now().UTC())
	req.NoError(err)

	flipped, err := repo.MarkRead(ctx, apptID, domain.RoleParticipant)
	req.NoError(err)
	req.Equal(1, flipped)

	again, err := repo.MarkRead(ctx, apptID, domain.RoleParticipant)
	req.NoError(err)
	req.Equal(0, again, "second call is a no-op")

	first, err := repo.List(ctx, apptID)
	req.NoError(err)
	_, err = repo.MarkRead(ctx, apptID, domain.RoleParticipant)
	req.NoError(err)
	second, err := repo.List(ctx, apptID)
	req.NoError(err)
	req.Equal(first, second)
}
