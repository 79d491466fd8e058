package database

import (
	"time"

	"lottery-panel/database/model"

	"github.com/goccy/go-json"
)

// EnqueuePendingWrite appends an intended conditional write to the
// durable outbox for later replay against the remote store.
func EnqueuePendingWrite(t *model.Ticket, expectedVersion int64) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	entry := &model.OutboxEntry{
		TicketId:        t.Id,
		Payload:         string(payload),
		ExpectedVersion: expectedVersion,
		CreatedAt:       time.Now(),
	}
	return db.Create(entry).Error
}

// CountPendingOutbox returns the current outbox depth.
func CountPendingOutbox() (int64, error) {
	var count int64
	err := db.Model(&model.OutboxEntry{}).Count(&count).Error
	return count, err
}

// OutboxCursor walks pending entries in enqueue order. Entries are
// removed only on Ack, so an interrupted drain resumes from the first
// unacknowledged item: at-least-once delivery on replay.
type OutboxCursor struct {
	afterId int64
}

// DrainPending returns a restartable cursor over the outbox.
func DrainPending() *OutboxCursor {
	return &OutboxCursor{}
}

// Next returns the next pending entry, or nil when the queue is empty.
func (c *OutboxCursor) Next() (*model.OutboxEntry, error) {
	var entry model.OutboxEntry
	err := db.Where("id > ?", c.afterId).Order("id asc").First(&entry).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	c.afterId = entry.Id
	return &entry, nil
}

// Ack removes a processed entry.
func (c *OutboxCursor) Ack(entry *model.OutboxEntry) error {
	return db.Delete(entry).Error
}

// Fail records a delivery failure; the entry stays queued for the next
// drain.
func (c *OutboxCursor) Fail(entry *model.OutboxEntry, cause error) error {
	entry.Attempts++
	if cause != nil {
		entry.LastError = cause.Error()
	}
	return db.Save(entry).Error
}

// DecodeOutboxTicket unpacks the ticket snapshot carried by an entry.
func DecodeOutboxTicket(entry *model.OutboxEntry) (*model.Ticket, error) {
	var t model.Ticket
	if err := json.Unmarshal([]byte(entry.Payload), &t); err != nil {
		return nil, err
	}
	return &t, nil
}
