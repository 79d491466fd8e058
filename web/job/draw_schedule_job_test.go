package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/remote"
	"lottery-panel/web/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSchedule(t *testing.T) (*service.DrawService, *service.TicketService) {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() {
		database.CloseDB()
	})
	store := remote.NewMemoryStore()
	notify := service.NewNotifyService()
	timeout := 2 * time.Second
	return service.NewDrawService(store, notify, timeout),
		service.NewTicketService(store, notify, timeout)
}

func TestDrawScheduleJobClosesAndRunsDueDraw(t *testing.T) {
	draws, tickets := setupSchedule(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	draw, err := draws.CreateDraw("due", "uniform", 1, 0, 0, 0, &past)
	require.NoError(t, err)
	ticket, err := tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)
	_, err = tickets.Enter(ctx, ticket.Id, 0, 0)
	require.NoError(t, err)

	NewDrawScheduleJob(draws).Run()

	got, err := draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawDrawn, got.Status)

	won, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Won, won.State)
}

func TestDrawScheduleJobRunsManuallyClosedDraw(t *testing.T) {
	draws, tickets := setupSchedule(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	draw, err := draws.CreateDraw("due", "uniform", 1, 0, 0, 0, &past)
	require.NoError(t, err)
	ticket, err := tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)
	_, err = tickets.Enter(ctx, ticket.Id, 0, 0)
	require.NoError(t, err)

	// an operator closed the draw by hand before the scheduler got to it
	_, err = draws.CloseDraw(draw.Id)
	require.NoError(t, err)

	NewDrawScheduleJob(draws).Run()

	got, err := draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawDrawn, got.Status)
}

func TestDrawScheduleJobResolvesEmptyDraw(t *testing.T) {
	draws, _ := setupSchedule(t)

	past := time.Now().Add(-time.Minute)
	draw, err := draws.CreateDraw("empty", "uniform", 1, 0, 0, 0, &past)
	require.NoError(t, err)

	j := NewDrawScheduleJob(draws)
	j.Run()

	got, err := draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawDrawn, got.Status)
	assert.NotNil(t, got.DrawnAt)

	// resolved draws leave the schedule for good
	due, err := database.ListDueDraws(time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	j.Run()
	again, err := draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawDrawn, again.Status)
}

func TestDrawScheduleJobSkipsFutureDraws(t *testing.T) {
	draws, _ := setupSchedule(t)

	future := time.Now().Add(time.Hour)
	draw, err := draws.CreateDraw("later", "uniform", 1, 0, 0, 0, &future)
	require.NoError(t, err)

	NewDrawScheduleJob(draws).Run()

	got, err := draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawOpen, got.Status)
}
