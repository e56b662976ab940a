package autoreply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"widget-chat-service/internal/mocks"
	"widget-chat-service/internal/models"
)

func TestSweepReportsUnresolvedMessages(t *testing.T) {
	outcomes := &mocks.OutcomeRepositoryMock{}
	sweeper := NewSweeper(outcomes, 2*time.Minute, zerolog.Nop())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return now }

	failed := models.OutcomeFailed
	rows := []models.UnrepliedMessage{
		{MessageID: 1, ChatID: "c1", WidgetID: "w1"},
		{MessageID: 2, ChatID: "c1", WidgetID: "w1", Outcome: &failed},
	}
	outcomes.On("ListUnresolved", mock.Anything, now.Add(-24*time.Hour), now.Add(-2*time.Minute), 500).Return(rows, nil).Once()

	got, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rows, got)
	outcomes.AssertExpectations(t)
}

func TestSweepPropagatesErrors(t *testing.T) {
	outcomes := &mocks.OutcomeRepositoryMock{}
	sweeper := NewSweeper(outcomes, time.Minute, zerolog.Nop())
	outcomes.On("ListUnresolved", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	sweeper := NewSweeper(&mocks.OutcomeRepositoryMock{}, time.Minute, zerolog.Nop())
	require.Error(t, sweeper.Start("not a schedule"))
}

func TestSweeperStartStop(t *testing.T) {
	sweeper := NewSweeper(&mocks.OutcomeRepositoryMock{}, time.Minute, zerolog.Nop())
	require.NoError(t, sweeper.Start("@every 1h"))
	sweeper.Stop()
}
