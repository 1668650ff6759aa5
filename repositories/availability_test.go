package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"quitcoach/domain"

	"github.com/stretchr/testify/require"
)

func Test_Windows_Roundtrip(t *testing.T) {
	req := require.New(t)
	repo := NewAvailabilityRepository(openTestDB(t), slog.Default(), nil)
	ctx := context.Background()

	morning := domain.AvailabilityWindow{CoachID: "coach-1", Weekday: time.Monday, StartMin: 9 * 60, EndMin: 12 * 60}
	afternoon := domain.AvailabilityWindow{CoachID: "coach-1", Weekday: time.Monday, StartMin: 14 * 60, EndMin: 17 * 60}
	req.NoError(repo.SetWindows(ctx, "coach-1", time.Monday, []domain.AvailabilityWindow{morning, afternoon}))

	windows, err := repo.WindowsFor(ctx, "coach-1", time.Monday)
	req.NoError(err)
	req.Len(windows, 2)
	req.Equal(9*60, windows[0].StartMin)

	// Other weekdays stay empty without a default.
	windows, err = repo.WindowsFor(ctx, "coach-1", time.Tuesday)
	req.NoError(err)
	req.Empty(windows)
}

func Test_Missing_Record_Falls_Back_To_Default(t *testing.T) {
	req := require.New(t)
	fallback := &domain.AvailabilityWindow{StartMin: 9 * 60, EndMin: 17 * 60}
	repo := NewAvailabilityRepository(openTestDB(t), slog.Default(), fallback)
	ctx := context.Background()

	windows, err := repo.WindowsFor(ctx, "coach-9", time.Friday)
	req.NoError(err)
	req.Len(windows, 1)
	req.Equal("coach-9", windows[0].CoachID)
	req.Equal(time.Friday, windows[0].Weekday)

	// An explicit empty record means a day off and beats the default.
	req.NoError(repo.SetWindows(ctx, "coach-9", time.Friday, nil))
	windows, err = repo.WindowsFor(ctx, "coach-9", time.Friday)
	req.NoError(err)
	req.Empty(windows)
}
