package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lottery-panel/database/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() {
		CloseDB()
	})
}

func ticket(version int64, state model.TicketState) *model.Ticket {
	now := time.Now()
	return &model.Ticket{
		Id:        uuid.NewString(),
		DrawId:    uuid.NewString(),
		OwnerRef:  "owner-1",
		State:     state,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpsertTicketVersionGate(t *testing.T) {
	setupDB(t)

	fresh := ticket(3, model.Won)
	applied, err := UpsertTicket(fresh)
	require.NoError(t, err)
	assert.True(t, applied)

	// a newer version replaces
	newer := fresh.Clone()
	newer.Version = 4
	newer.State = model.Redeemed
	at := time.Now()
	newer.RedeemedAt = &at
	applied, err = UpsertTicket(newer)
	require.NoError(t, err)
	assert.True(t, applied)

	// a stale delivery is discarded, not merged
	stale := fresh.Clone()
	stale.Version = 2
	stale.State = model.Entered
	applied, err = UpsertTicket(stale)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := GetTicket(fresh.Id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(4), stored.Version)
	assert.Equal(t, model.Redeemed, stored.State)
}

func TestGetTicketMiss(t *testing.T) {
	setupDB(t)

	got, err := GetTicket(uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOutboxDrainAckRestart(t *testing.T) {
	setupDB(t)

	first := ticket(2, model.Redeemed)
	second := ticket(1, model.Entered)
	require.NoError(t, EnqueuePendingWrite(first, 1))
	require.NoError(t, EnqueuePendingWrite(second, 0))

	count, err := CountPendingOutbox()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	cursor := DrainPending()
	entry, err := cursor.Next()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, first.Id, entry.TicketId)
	assert.Equal(t, int64(1), entry.ExpectedVersion)

	decoded, err := DecodeOutboxTicket(entry)
	require.NoError(t, err)
	assert.Equal(t, first.Id, decoded.Id)
	assert.Equal(t, model.Redeemed, decoded.State)

	// not acked: a fresh drain starts over at the same entry
	restarted := DrainPending()
	again, err := restarted.Next()
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, entry.Id, again.Id)

	require.NoError(t, restarted.Ack(again))
	count, err = CountPendingOutbox()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entry, err = restarted.Next()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, second.Id, entry.TicketId)

	// a failure keeps the entry but records the attempt
	require.NoError(t, restarted.Fail(entry, errors.New("store unreachable")))
	kept := DrainPending()
	failed, err := kept.Next()
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, 1, failed.Attempts)
	assert.Contains(t, failed.LastError, "unreachable")

	require.NoError(t, kept.Ack(failed))
	empty, err := kept.Next()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestListEntryLocations(t *testing.T) {
	setupDB(t)

	drawId := uuid.NewString()
	located := ticket(2, model.Entered)
	located.DrawId = drawId
	located.EntryLat = 53.52
	located.EntryLng = -113.52
	_, err := UpsertTicket(located)
	require.NoError(t, err)

	unlocated := ticket(2, model.Entered)
	unlocated.DrawId = drawId
	_, err = UpsertTicket(unlocated)
	require.NoError(t, err)

	notEntered := ticket(1, model.Issued)
	notEntered.DrawId = drawId
	notEntered.EntryLat = 51.04
	_, err = UpsertTicket(notEntered)
	require.NoError(t, err)

	locations, err := ListEntryLocations(drawId)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, located.Id, locations[0].TicketId)
	assert.Equal(t, 53.52, locations[0].Lat)
}

func TestListDueDraws(t *testing.T) {
	setupDB(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	draws := []*model.Draw{
		{Id: uuid.NewString(), Name: "open due", Status: model.DrawOpen, ScheduledAt: &past},
		{Id: uuid.NewString(), Name: "closed due", Status: model.DrawClosed, ScheduledAt: &past},
		{Id: uuid.NewString(), Name: "already drawn", Status: model.DrawDrawn, ScheduledAt: &past},
		{Id: uuid.NewString(), Name: "not yet", Status: model.DrawOpen, ScheduledAt: &future},
		{Id: uuid.NewString(), Name: "unscheduled", Status: model.DrawOpen},
	}
	for _, d := range draws {
		d.CreatedAt = time.Now()
		require.NoError(t, CreateDraw(d))
	}

	due, err := ListDueDraws(time.Now())
	require.NoError(t, err)
	ids := make([]string, 0, len(due))
	for _, d := range due {
		ids = append(ids, d.Id)
	}
	// open and manually closed draws stay on the schedule; drawn,
	// future and unscheduled ones do not
	assert.ElementsMatch(t, []string{draws[0].Id, draws[1].Id}, ids)
}

func TestAllowedTransition(t *testing.T) {
	assert.True(t, model.AllowedTransition(model.Issued, model.Entered))
	assert.True(t, model.AllowedTransition(model.Entered, model.Won))
	assert.True(t, model.AllowedTransition(model.Entered, model.Lost))
	assert.True(t, model.AllowedTransition(model.Won, model.Redeemed))
	assert.True(t, model.AllowedTransition(model.Lost, model.Won))
	assert.True(t, model.AllowedTransition(model.Won, model.Void))

	assert.False(t, model.AllowedTransition(model.Issued, model.Won))
	assert.False(t, model.AllowedTransition(model.Redeemed, model.Void))
	assert.False(t, model.AllowedTransition(model.Void, model.Entered))
	assert.False(t, model.AllowedTransition(model.Redeemed, model.Won))
}
