package service

import (
	"context"
	"time"

	"lottery-panel/codec"
	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/remote"

	"go.uber.org/atomic"
)

// ScanEvent is the coordinator's input: one presentation of a symbol
// at a redemption point. It is never persisted.
type ScanEvent struct {
	Payload   []byte
	ScannerId string
	At        time.Time
}

type ScanResult string

const (
	// ScanSuccess: this scanner's conditional write committed the
	// redemption.
	ScanSuccess ScanResult = "success"
	// ScanAlreadyRedeemed: the ticket was already redeemed, possibly
	// by a concurrent scanner that won the race.
	ScanAlreadyRedeemed ScanResult = "alreadyRedeemed"
	// ScanNotEligible: the ticket exists but is not in the won state.
	ScanNotEligible ScanResult = "notEligible"
	// ScanDeferred: transient network or contention trouble; retry
	// later, nothing was redeemed.
	ScanDeferred ScanResult = "deferred"
	// ScanRejected: the payload did not decode to a ticket identity.
	ScanRejected ScanResult = "rejected"
)

type ScanOutcome struct {
	Result ScanResult    `json:"result"`
	Ticket *model.Ticket `json:"ticket,omitempty"`
	Err    error         `json:"-"`
}

// RedemptionService enforces at-most-once redemption. The remote
// store's conditional write is the single serialization point: the
// first committed write wins, every other scanner observes the
// conflict and backs off.
type RedemptionService struct {
	transitioner

	scanned   atomic.Int64
	succeeded atomic.Int64
	deferred  atomic.Int64
}

func NewRedemptionService(rc remote.SyncClient, notify *NotifyService, timeout time.Duration) *RedemptionService {
	return &RedemptionService{transitioner: newTransitioner(rc, notify, timeout)}
}

// Redeem runs the scan-to-redeem state machine for one event.
func (s *RedemptionService) Redeem(ctx context.Context, event ScanEvent) *ScanOutcome {
	s.scanned.Inc()

	ticketId, err := codec.Decode(event.Payload)
	if err != nil {
		return &ScanOutcome{Result: ScanRejected, Err: err}
	}

	unlock := database.LockTicket(ticketId)
	defer unlock()

	current, err := s.loadTicket(ctx, ticketId)
	if err != nil {
		if err != remote.ErrUnavailable {
			logger.Warning("load ticket for redemption:", err)
		}
		s.deferred.Inc()
		return &ScanOutcome{Result: ScanDeferred}
	}
	if current == nil {
		// both stores answered and neither knows the id
		return &ScanOutcome{Result: ScanNotEligible}
	}

	// One refresh-and-retry is allowed for conflicts caused by an
	// unrelated field change; a second conflict is contention
	// exhaustion.
	for attempt := 0; attempt < 2; attempt++ {
		switch current.State {
		case model.Won:
			// eligible, fall through to the write
		case model.Redeemed:
			return &ScanOutcome{Result: ScanAlreadyRedeemed, Ticket: current}
		default:
			return &ScanOutcome{Result: ScanNotEligible, Ticket: current}
		}

		redeemedAt := event.At
		next := current.Clone()
		next.State = model.Redeemed
		next.RedeemedBy = event.ScannerId
		next.RedeemedAt = &redeemedAt
		next.Version = current.Version + 1
		next.UpdatedAt = redeemedAt

		status, serverCopy, err := s.commit(ctx, current, next)
		if err != nil {
			logger.Error("redemption commit:", err)
			s.deferred.Inc()
			return &ScanOutcome{Result: ScanDeferred}
		}

		switch status {
		case commitOK:
			s.succeeded.Inc()
			logger.Infof("ticket %s redeemed by %s", next.Id, event.ScannerId)
			return &ScanOutcome{Result: ScanSuccess, Ticket: next}
		case commitDeferred:
			s.deferred.Inc()
			return &ScanOutcome{Result: ScanDeferred}
		case commitConflict:
			if serverCopy == nil {
				s.deferred.Inc()
				return &ScanOutcome{Result: ScanDeferred}
			}
			if serverCopy.State == model.Redeemed {
				// another scanner won the race; do not retry
				return &ScanOutcome{Result: ScanAlreadyRedeemed, Ticket: serverCopy}
			}
			current = serverCopy
		}
	}

	s.deferred.Inc()
	return &ScanOutcome{Result: ScanDeferred}
}

// Stats reports the coordinator's counters for the status endpoint.
func (s *RedemptionService) Stats() (scanned, succeeded, deferred int64) {
	return s.scanned.Load(), s.succeeded.Load(), s.deferred.Load()
}
