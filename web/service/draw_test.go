package service_test

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/remote"
	"lottery-panel/web/job"
	"lottery-panel/web/service"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawEnv struct {
	store   *remote.MemoryStore
	draws   *service.DrawService
	tickets *service.TicketService
}

func setupDrawEnv(t *testing.T) *drawEnv {
	store := setupStore(t)
	notify := service.NewNotifyService()
	return &drawEnv{
		store:   store,
		draws:   service.NewDrawService(store, notify, testTimeout),
		tickets: service.NewTicketService(store, notify, testTimeout),
	}
}

// enterTickets issues count tickets into the draw and joins each one to
// the waiting list, returning their ids.
func (e *drawEnv) enterTickets(t *testing.T, drawId string, count int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ticket, err := e.tickets.Issue(ctx, drawId, "owner")
		require.NoError(t, err)
		_, err = e.tickets.Enter(ctx, ticket.Id, 0, 0)
		require.NoError(t, err)
		ids = append(ids, ticket.Id)
	}
	return ids
}

func TestRunDrawSelectsSeededWinners(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 2, 0, 0, 0, nil)
	require.NoError(t, err)
	entered := env.enterTickets(t, draw.Id, 5)

	closed, err := env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawClosed, closed.Status)

	var pool []string
	require.NoError(t, json.Unmarshal([]byte(closed.PoolSnapshot), &pool))
	assert.ElementsMatch(t, entered, pool)
	assert.True(t, sort.StringsAreSorted(pool))

	drawn, err := env.draws.RunDraw(ctx, draw.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DrawDrawn, drawn.Status)
	require.NotNil(t, drawn.DrawnAt)

	// the outcome must match an independent replay of the recorded
	// seed over the recorded pool
	expected := service.PolicyByName(drawn.Policy).Rank(rand.New(rand.NewSource(drawn.Seed)), pool)
	for i, id := range expected {
		ticket, err := database.GetTicket(id)
		require.NoError(t, err)
		require.NotNil(t, ticket)
		if i < drawn.WinnerCount {
			assert.Equal(t, model.Won, ticket.State, "ranked %d", i)
		} else {
			assert.Equal(t, model.Lost, ticket.State, "ranked %d", i)
		}
		assert.Equal(t, ticket.State, env.store.Get(id).State)
	}
}

func TestRunDrawAgainIsRejectedWithoutMutation(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ids := env.enterTickets(t, draw.Id, 3)
	_, err = env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)
	_, err = env.draws.RunDraw(ctx, draw.Id)
	require.NoError(t, err)

	before := make(map[string]int64, len(ids))
	for _, id := range ids {
		ticket, err := database.GetTicket(id)
		require.NoError(t, err)
		before[id] = ticket.Version
	}

	_, err = env.draws.RunDraw(ctx, draw.Id)
	assert.ErrorIs(t, err, service.ErrAlreadyDrawn)
	_, err = env.draws.CloseDraw(draw.Id)
	assert.ErrorIs(t, err, service.ErrAlreadyDrawn)

	for _, id := range ids {
		ticket, err := database.GetTicket(id)
		require.NoError(t, err)
		assert.Equal(t, before[id], ticket.Version)
	}
}

func TestRunDrawRequiresClosedDraw(t *testing.T) {
	env := setupDrawEnv(t)

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	env.enterTickets(t, draw.Id, 2)

	_, err = env.draws.RunDraw(context.Background(), draw.Id)
	assert.ErrorIs(t, err, service.ErrDrawNotClosed)
}

func TestRunDrawEmptyPool(t *testing.T) {
	env := setupDrawEnv(t)

	draw, err := env.draws.CreateDraw("empty", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	_, err = env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)

	_, err = env.draws.RunDraw(context.Background(), draw.Id)
	assert.ErrorIs(t, err, service.ErrEmptyPool)
}

func TestRunDrawWinnerCountExceedsPool(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("small", "uniform", 5, 0, 0, 0, nil)
	require.NoError(t, err)
	ids := env.enterTickets(t, draw.Id, 2)
	_, err = env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)
	_, err = env.draws.RunDraw(ctx, draw.Id)
	require.NoError(t, err)

	for _, id := range ids {
		ticket, err := database.GetTicket(id)
		require.NoError(t, err)
		assert.Equal(t, model.Won, ticket.State)
	}
}

func TestDrawReplacementPromotesNextRanked(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	env.enterTickets(t, draw.Id, 4)
	_, err = env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)
	drawn, err := env.draws.RunDraw(ctx, draw.Id)
	require.NoError(t, err)

	var pool []string
	require.NoError(t, json.Unmarshal([]byte(drawn.PoolSnapshot), &pool))
	ranked := service.PolicyByName(drawn.Policy).Rank(rand.New(rand.NewSource(drawn.Seed)), pool)

	// the original winner drops out
	_, err = env.tickets.VoidTicket(ctx, ranked[0])
	require.NoError(t, err)

	promoted, err := env.draws.DrawReplacement(ctx, draw.Id)
	require.NoError(t, err)
	assert.Equal(t, ranked[1], promoted.Id)
	assert.Equal(t, model.Won, promoted.State)
	assert.Equal(t, model.Won, env.store.Get(promoted.Id).State)

	saved, err := env.draws.GetDraw(draw.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Replacements)

	// the next replacement continues from where the counter left off
	_, err = env.tickets.VoidTicket(ctx, promoted.Id)
	require.NoError(t, err)
	second, err := env.draws.DrawReplacement(ctx, draw.Id)
	require.NoError(t, err)
	assert.Equal(t, ranked[2], second.Id)

	// the pool runs dry eventually
	_, err = env.tickets.VoidTicket(ctx, second.Id)
	require.NoError(t, err)
	third, err := env.draws.DrawReplacement(ctx, draw.Id)
	require.NoError(t, err)
	assert.Equal(t, ranked[3], third.Id)

	_, err = env.draws.DrawReplacement(ctx, draw.Id)
	assert.ErrorIs(t, err, service.ErrNoReplacement)
}

func TestDrawReplacementRequiresDrawnDraw(t *testing.T) {
	env := setupDrawEnv(t)

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	_, err = env.draws.DrawReplacement(context.Background(), draw.Id)
	assert.ErrorIs(t, err, service.ErrDrawNotClosed)
}

func TestIssueRequiresOpenDraw(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	_, err = env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)

	_, err = env.tickets.Issue(ctx, draw.Id, "owner")
	assert.ErrorIs(t, err, service.ErrDrawNotOpen)

	_, err = env.tickets.Issue(ctx, "no-such-draw", "owner")
	assert.ErrorIs(t, err, service.ErrDrawNotFound)
}

func TestEnterHonorsCapacity(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("limited", "uniform", 1, 1, 0, 0, nil)
	require.NoError(t, err)

	first, err := env.tickets.Issue(ctx, draw.Id, "owner-a")
	require.NoError(t, err)
	second, err := env.tickets.Issue(ctx, draw.Id, "owner-b")
	require.NoError(t, err)

	_, err = env.tickets.Enter(ctx, first.Id, 53.52, -113.52)
	require.NoError(t, err)
	_, err = env.tickets.Enter(ctx, second.Id, 0, 0)
	assert.ErrorIs(t, err, service.ErrDrawFull)
}

func TestEnterRecordsJoinLocation(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)
	entered, err := env.tickets.Enter(ctx, ticket.Id, 53.52, -113.52)
	require.NoError(t, err)
	assert.Equal(t, model.Entered, entered.State)
	assert.Equal(t, int64(2), entered.Version)

	locations, err := env.tickets.ListEntryLocations(draw.Id)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, ticket.Id, locations[0].TicketId)
	assert.Equal(t, 53.52, locations[0].Lat)
	assert.Equal(t, -113.52, locations[0].Lng)

	// entering twice is not a valid lifecycle edge
	_, err = env.tickets.Enter(ctx, ticket.Id, 0, 0)
	assert.ErrorIs(t, err, service.ErrTicketNotIssued)
}

func TestVoidTicket(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)

	voided, err := env.tickets.VoidTicket(ctx, ticket.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Void, voided.State)

	_, err = env.tickets.VoidTicket(ctx, ticket.Id)
	assert.ErrorIs(t, err, service.ErrTicketTerminal)
}

func TestIssueOfflineKeepsLocalCopy(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	env.store.SetOffline(true)

	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)

	cached, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.Issued, cached.State)

	pending, err := database.CountPendingOutbox()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	assert.Nil(t, env.store.Get(ticket.Id))
}

func TestEnterOfflineStaysVisibleLocally(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)

	env.store.SetOffline(true)
	entered, err := env.tickets.Enter(ctx, ticket.Id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, model.Entered, entered.State)

	// the device's own view matches what it acknowledged
	cached, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.Entered, cached.State)
	assert.Equal(t, int64(2), cached.Version)

	// a close before replay still freezes the acknowledged entrant
	closed, err := env.draws.CloseDraw(draw.Id)
	require.NoError(t, err)
	var pool []string
	require.NoError(t, json.Unmarshal([]byte(closed.PoolSnapshot), &pool))
	assert.Equal(t, []string{ticket.Id}, pool)

	env.store.SetOffline(false)
	job.NewOutboxReplayJob(env.store, nil).Run()
	assert.Equal(t, model.Entered, env.store.Get(ticket.Id).State)

	// the replayed entrant can now win
	_, err = env.draws.RunDraw(ctx, draw.Id)
	require.NoError(t, err)
	won, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Won, won.State)
}

func TestVoidOfflineStaysVisibleLocally(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)

	env.store.SetOffline(true)
	voided, err := env.tickets.VoidTicket(ctx, ticket.Id)
	require.NoError(t, err)
	assert.Equal(t, model.Void, voided.State)

	cached, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.Void, cached.State)

	// the acknowledged void is final even before replay
	_, err = env.tickets.VoidTicket(ctx, ticket.Id)
	assert.ErrorIs(t, err, service.ErrTicketTerminal)
}

func TestChangeFeedMergesRemoteWins(t *testing.T) {
	env := setupDrawEnv(t)
	ctx := context.Background()

	draw, err := env.draws.CreateDraw("friday", "uniform", 1, 0, 0, 0, nil)
	require.NoError(t, err)
	ticket, err := env.tickets.Issue(ctx, draw.Id, "owner")
	require.NoError(t, err)

	cancel, err := env.tickets.StartChangeFeed(ctx, draw.Id)
	require.NoError(t, err)
	defer cancel()

	// another device moves the ticket forward; the commit fans out to
	// subscribers synchronously in the in-process store
	next := ticket.Clone()
	next.State = model.Entered
	next.Version = 2
	res, err := env.store.ConditionalWrite(ctx, next, 1)
	require.NoError(t, err)
	require.True(t, res.Committed)

	cached, err := database.GetTicket(ticket.Id)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.Entered, cached.State)
	assert.Equal(t, int64(2), cached.Version)

	// a stale delivery must not roll the cache back
	stale := ticket.Clone()
	applied, err := database.UpsertTicket(stale)
	require.NoError(t, err)
	assert.False(t, applied)
}
