package service

import (
	"context"
	"time"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/remote"
	"lottery-panel/util/common"
)

type commitStatus int

const (
	// commitOK: the conditional write won; local cache and notifiers
	// are up to date.
	commitOK commitStatus = iota
	// commitConflict: a concurrent writer got there first; the server
	// copy has been merged into the local cache.
	commitConflict
	// commitDeferred: the store was unreachable; the write is queued
	// in the outbox for replay.
	commitDeferred
)

// transitioner funnels every ticket mutation through the remote
// store's conditional write. It is the only way state advances.
type transitioner struct {
	remote  remote.SyncClient
	notify  *NotifyService
	timeout time.Duration
}

func newTransitioner(rc remote.SyncClient, notify *NotifyService, timeout time.Duration) transitioner {
	return transitioner{remote: rc, notify: notify, timeout: timeout}
}

// commit performs the conditional write moving current to next; a nil
// current is a create (expected version 0). The caller must hold the
// ticket's local lock. The returned ticket is the server copy on
// conflict, next itself on commit, nil when deferred.
func (tr *transitioner) commit(ctx context.Context, current, next *model.Ticket) (commitStatus, *model.Ticket, error) {
	var expectedVersion int64
	if current != nil {
		if !model.AllowedTransition(current.State, next.State) {
			return commitConflict, nil, common.NewErrorf("transition %s -> %s is not allowed", current.State, next.State)
		}
		expectedVersion = current.Version
	}

	callCtx, cancel := context.WithTimeout(ctx, tr.timeout)
	defer cancel()

	res, err := tr.remote.ConditionalWrite(callCtx, next, expectedVersion)
	if err != nil {
		// unavailable: queue for replay, degrade to local-only
		if qErr := database.EnqueuePendingWrite(next, expectedVersion); qErr != nil {
			return commitDeferred, nil, qErr
		}
		return commitDeferred, nil, nil
	}

	if !res.Committed {
		if res.Current != nil {
			if _, mErr := database.UpsertTicket(res.Current); mErr != nil {
				logger.Warning("merge conflicting ticket:", mErr)
			}
		}
		return commitConflict, res.Current, nil
	}

	if _, err := database.UpsertTicket(next); err != nil {
		// The remote commit stands; the cache will heal via the change
		// feed or the next fetch.
		logger.Warning("cache committed ticket:", err)
	}
	if tr.notify != nil {
		tr.notify.Emit(StateChange{
			TicketId: next.Id,
			DrawId:   next.DrawId,
			OwnerRef: next.OwnerRef,
			NewState: next.State,
			At:       next.UpdatedAt,
		})
	}
	return commitOK, next, nil
}

// loadTicket reads through the cache, falling back to a remote fetch
// on a miss. A fetched record is merged into the cache. Returns
// (nil, nil) when the ticket is genuinely unknown and
// (nil, ErrUnavailable) when neither source could answer.
func (tr *transitioner) loadTicket(ctx context.Context, id string) (*model.Ticket, error) {
	cached, err := database.GetTicket(id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, tr.timeout)
	defer cancel()
	fetched, err := tr.remote.Fetch(callCtx, id)
	if err != nil {
		if err == remote.ErrNotFound {
			return nil, nil
		}
		return nil, remote.ErrUnavailable
	}
	if _, err := database.UpsertTicket(fetched); err != nil {
		logger.Warning("cache fetched ticket:", err)
	}
	return fetched, nil
}
