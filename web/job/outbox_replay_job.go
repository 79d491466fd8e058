package job

import (
	"context"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/remote"
	"lottery-panel/web/service"
)

// OutboxReplayJob drains the durable outbox against the remote store.
// Replay is at-least-once: an entry is removed only after its write
// resolves, and a resolved conflict counts as resolved (the version
// guard means a replayed, already-committed mutation can never
// double-apply). The drain stops at the first unavailable call and
// resumes next tick; it is cancellable between items, never mid-item.
type OutboxReplayJob struct {
	remote remote.SyncClient
	notify *service.NotifyService
}

func NewOutboxReplayJob(rc remote.SyncClient, notify *service.NotifyService) *OutboxReplayJob {
	return &OutboxReplayJob{remote: rc, notify: notify}
}

func (j *OutboxReplayJob) Run() {
	ctx := context.Background()
	cursor := database.DrainPending()
	replayed := 0

	for {
		entry, err := cursor.Next()
		if err != nil {
			logger.Warning("outbox cursor:", err)
			return
		}
		if entry == nil {
			break
		}

		ticket, err := database.DecodeOutboxTicket(entry)
		if err != nil {
			// a payload we cannot decode will never succeed; drop it
			logger.Errorf("outbox entry %d undecodable, dropping: %v", entry.Id, err)
			if err := cursor.Ack(entry); err != nil {
				logger.Warning("ack outbox entry:", err)
			}
			continue
		}

		if !j.replayOne(ctx, cursor, entry, ticket) {
			return
		}
		replayed++
	}

	if replayed > 0 {
		logger.Infof("outbox replay: %d entries resolved", replayed)
	}
}

// replayOne resolves a single entry; false means the store is
// unreachable and the drain should stop.
func (j *OutboxReplayJob) replayOne(ctx context.Context, cursor *database.OutboxCursor, entry *model.OutboxEntry, ticket *model.Ticket) bool {
	unlock := database.LockTicket(ticket.Id)
	defer unlock()

	res, err := j.remote.ConditionalWrite(ctx, ticket, entry.ExpectedVersion)
	if err != nil {
		if fErr := cursor.Fail(entry, err); fErr != nil {
			logger.Warning("record outbox failure:", fErr)
		}
		return false
	}

	if res.Committed {
		if _, err := database.UpsertTicket(ticket); err != nil {
			logger.Warning("cache replayed ticket:", err)
		}
		if j.notify != nil {
			j.notify.Emit(service.StateChange{
				TicketId: ticket.Id,
				DrawId:   ticket.DrawId,
				OwnerRef: ticket.OwnerRef,
				NewState: ticket.State,
				At:       ticket.UpdatedAt,
			})
		}
	} else if res.Current != nil {
		// the race was lost while offline; adopt the server's copy
		if _, err := database.UpsertTicket(res.Current); err != nil {
			logger.Warning("merge conflicting ticket:", err)
		}
	}

	if err := cursor.Ack(entry); err != nil {
		logger.Warning("ack outbox entry:", err)
	}
	return true
}
