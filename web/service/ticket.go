package service

import (
	"context"
	"errors"
	"time"

	"lottery-panel/codec"
	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/remote"

	"github.com/google/uuid"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketNotIssued = errors.New("ticket is not in the issued state")
	ErrTicketTerminal  = errors.New("ticket is in a terminal state")
	ErrDrawFull        = errors.New("waiting list is full")
	ErrTicketPending   = errors.New("ticket write pending sync")
)

// TicketService covers the lifecycle edges outside scan redemption and
// the draw: issuance, waiting-list entry, administrative void, and the
// read-only listings handed to the export and map collaborators.
type TicketService struct {
	transitioner
}

func NewTicketService(rc remote.SyncClient, notify *NotifyService, timeout time.Duration) *TicketService {
	return &TicketService{transitioner: newTransitioner(rc, notify, timeout)}
}

// Issue creates a ticket in the issued state, version 1, through a
// create-if-absent conditional write (expected version 0). Offline the
// ticket is cached locally and the create queues in the outbox.
func (s *TicketService) Issue(ctx context.Context, drawId, ownerRef string) (*model.Ticket, error) {
	draw, err := database.GetDraw(drawId)
	if err != nil {
		return nil, err
	}
	if draw == nil {
		return nil, ErrDrawNotFound
	}
	if draw.Status != model.DrawOpen {
		return nil, ErrDrawNotOpen
	}

	now := time.Now()
	ticket := &model.Ticket{
		Id:        uuid.NewString(),
		DrawId:    drawId,
		OwnerRef:  ownerRef,
		State:     model.Issued,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock := database.LockTicket(ticket.Id)
	defer unlock()

	status, _, err := s.commit(ctx, nil, ticket)
	if err != nil {
		return nil, err
	}
	if status == commitConflict {
		// a fresh uuid colliding means the store is confused; bail
		return nil, errors.New("ticket id already exists")
	}
	if status == commitDeferred {
		// keep a local copy so the device stays usable offline
		if _, err := database.UpsertTicket(ticket); err != nil {
			return nil, err
		}
	}
	logger.Infof("ticket %s issued for draw %s", ticket.Id, drawId)
	return ticket, nil
}

// Enter moves an issued ticket onto the draw's waiting list, recording
// the join location for the organizer map. A capacity-limited draw
// rejects joins once full.
func (s *TicketService) Enter(ctx context.Context, ticketId string, lat, lng float64) (*model.Ticket, error) {
	unlock := database.LockTicket(ticketId)
	defer unlock()

	current, err := s.loadTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrTicketNotFound
	}
	if current.State != model.Issued {
		return nil, ErrTicketNotIssued
	}

	draw, err := database.GetDraw(current.DrawId)
	if err != nil {
		return nil, err
	}
	if draw == nil {
		return nil, ErrDrawNotFound
	}
	if draw.Status != model.DrawOpen {
		return nil, ErrDrawNotOpen
	}
	if draw.MaxEntries > 0 {
		entered, err := database.ListTicketsInState(draw.Id, model.Entered)
		if err != nil {
			return nil, err
		}
		if len(entered) >= draw.MaxEntries {
			return nil, ErrDrawFull
		}
	}

	next := current.Clone()
	next.State = model.Entered
	next.EntryLat = lat
	next.EntryLng = lng
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()

	status, serverCopy, err := s.commit(ctx, current, next)
	if err != nil {
		return nil, err
	}
	switch status {
	case commitOK:
		return next, nil
	case commitDeferred:
		// keep the acknowledged entry locally visible until replay
		if _, err := database.UpsertTicket(next); err != nil {
			return nil, err
		}
		return next, nil
	default:
		if serverCopy != nil && serverCopy.State == model.Entered {
			// a concurrent join already landed; idempotent outcome
			return serverCopy, nil
		}
		return nil, ErrTicketNotIssued
	}
}

// VoidTicket is the administrative kill switch: any non-terminal state
// moves to void. Voiding a winner frees a slot; the draw engine's
// replacement path can then promote the next ranked candidate.
func (s *TicketService) VoidTicket(ctx context.Context, ticketId string) (*model.Ticket, error) {
	unlock := database.LockTicket(ticketId)
	defer unlock()

	current, err := s.loadTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrTicketNotFound
	}

	for attempt := 0; attempt < 2; attempt++ {
		if current.State.IsTerminal() {
			return nil, ErrTicketTerminal
		}

		next := current.Clone()
		next.State = model.Void
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now()

		status, serverCopy, err := s.commit(ctx, current, next)
		if err != nil {
			return nil, err
		}
		switch status {
		case commitOK:
			return next, nil
		case commitDeferred:
			if _, err := database.UpsertTicket(next); err != nil {
				return nil, err
			}
			return next, nil
		case commitConflict:
			if serverCopy == nil {
				return nil, ErrTicketPending
			}
			current = serverCopy
		}
	}
	return nil, ErrTicketPending
}

func (s *TicketService) GetTicket(ctx context.Context, ticketId string) (*model.Ticket, error) {
	t, err := s.loadTicket(ctx, ticketId)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

// TicketQR renders the ticket's scannable symbol.
func (s *TicketService) TicketQR(ticketId string, size int) ([]byte, error) {
	return codec.EncodePNG(ticketId, size)
}

// ListTickets is the export collaborator's snapshot: finite, id-ordered
// and restartable (a fresh call re-reads from the store).
func (s *TicketService) ListTickets(drawId string) ([]*model.Ticket, error) {
	return database.ListTickets(drawId)
}

// ListEntryLocations feeds the map collaborator's cluster view.
func (s *TicketService) ListEntryLocations(drawId string) ([]*database.EntryLocation, error) {
	return database.ListEntryLocations(drawId)
}

// StartChangeFeed subscribes to the remote change stream for a draw
// and folds every delivery into the local cache; stale deliveries are
// discarded by the version-gated merge.
func (s *TicketService) StartChangeFeed(ctx context.Context, drawId string) (func(), error) {
	return s.remote.Subscribe(ctx, drawId, func(t *model.Ticket) {
		applied, err := database.UpsertTicket(t)
		if err != nil {
			logger.Warning("merge change-feed ticket:", err)
			return
		}
		if applied {
			logger.Debugf("change feed: ticket %s now %s v%d", t.Id, t.State, t.Version)
		}
	})
}
