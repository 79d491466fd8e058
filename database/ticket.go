package database

import (
	"sync"

	"lottery-panel/database/model"

	"gorm.io/gorm"
)

// Per-ticket mutexes. Local reads and writes for one ticket id form a
// critical section; unrelated tickets proceed in parallel.
var ticketLocks sync.Map

// LockTicket acquires the per-id mutex and returns its unlock func.
func LockTicket(id string) func() {
	v, _ := ticketLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetTicket returns the cached ticket, or nil without error on a miss.
func GetTicket(id string) (*model.Ticket, error) {
	var ticket model.Ticket
	err := db.Where("id = ?", id).First(&ticket).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &ticket, nil
}

// UpsertTicket merges a version-stamped record into the cache.
// The incoming record is applied only when its version is >= the stored
// one, so stale deliveries from the change feed are discarded instead
// of clobbering newer state. Returns whether the record was applied.
func UpsertTicket(t *model.Ticket) (bool, error) {
	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var stored model.Ticket
		err := tx.Where("id = ?", t.Id).First(&stored).Error
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			applied = true
			return tx.Create(t).Error
		}
		if t.Version < stored.Version {
			return nil
		}
		applied = true
		return tx.Save(t).Error
	})
	return applied, err
}

// ListTickets returns all tickets of a draw, id-ordered so exports and
// snapshots are stable.
func ListTickets(drawId string) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := db.Where("draw_id = ?", drawId).Order("id asc").Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListTicketsInState returns the draw's tickets currently in the given
// state, id-ordered.
func ListTicketsInState(drawId string, state model.TicketState) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := db.Where("draw_id = ? and state = ?", drawId, state).Order("id asc").Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// CountTickets returns how many tickets exist for a draw.
func CountTickets(drawId string) (int64, error) {
	var count int64
	err := db.Model(&model.Ticket{}).Where("draw_id = ?", drawId).Count(&count).Error
	return count, err
}

// EntryLocation is one geotagged waiting-list join, for the map view.
type EntryLocation struct {
	TicketId string  `json:"ticketId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// ListEntryLocations returns the join coordinates recorded for a draw's
// entered (or later) tickets. Tickets without a recorded location are
// skipped.
func ListEntryLocations(drawId string) ([]*EntryLocation, error) {
	var tickets []*model.Ticket
	err := db.Where("draw_id = ? and state <> ? and (entry_lat <> 0 or entry_lng <> 0)", drawId, model.Issued).
		Order("id asc").Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	locations := make([]*EntryLocation, 0, len(tickets))
	for _, t := range tickets {
		locations = append(locations, &EntryLocation{
			TicketId: t.Id,
			Lat:      t.EntryLat,
			Lng:      t.EntryLng,
		})
	}
	return locations, nil
}
