package model

import "time"

type TicketState string

const (
	Issued   TicketState = "issued"
	Entered  TicketState = "entered"
	Won      TicketState = "won"
	Lost     TicketState = "lost"
	Redeemed TicketState = "redeemed"
	Void     TicketState = "void"
)

// IsTerminal reports whether no further transition may leave the state.
func (s TicketState) IsTerminal() bool {
	return s == Redeemed || s == Void
}

// Ticket is one lottery entry. Version is bumped on every committed
// state transition and is the compare-and-swap guard for all remote
// writes; RedeemedBy/RedeemedAt are set exactly once, on the redeemed
// transition.
type Ticket struct {
	Id         string      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DrawId     string      `json:"drawId" gorm:"index;type:varchar(64)"`
	OwnerRef   string      `json:"ownerRef" gorm:"type:varchar(128)"`
	State      TicketState `json:"state" gorm:"type:varchar(16);index"`
	Version    int64       `json:"version"`
	RedeemedBy string      `json:"redeemedBy,omitempty" gorm:"type:varchar(128)"`
	RedeemedAt *time.Time  `json:"redeemedAt,omitempty"`
	EntryLat   float64     `json:"entryLat,omitempty"`
	EntryLng   float64     `json:"entryLng,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Clone returns a copy safe to mutate without aliasing the original.
func (t *Ticket) Clone() *Ticket {
	c := *t
	if t.RedeemedAt != nil {
		at := *t.RedeemedAt
		c.RedeemedAt = &at
	}
	return &c
}

type DrawStatus string

const (
	DrawOpen   DrawStatus = "open"
	DrawClosed DrawStatus = "closed"
	DrawDrawn  DrawStatus = "drawn"
)

// Draw is one lottery event. PoolSnapshot is the JSON-encoded, sorted
// list of eligible ticket ids frozen at close time; together with Seed
// and Policy it makes the winner set reproducible.
type Draw struct {
	Id           string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name         string     `json:"name" gorm:"type:varchar(255)"`
	Policy       string     `json:"policy" gorm:"type:varchar(32)"`
	WinnerCount  int        `json:"winnerCount"`
	MaxEntries   int        `json:"maxEntries"`
	Status       DrawStatus `json:"status" gorm:"type:varchar(16);index"`
	Seed         int64      `json:"seed"`
	Replacements int        `json:"replacements"`
	PoolSnapshot string     `json:"poolSnapshot,omitempty" gorm:"type:text"`
	Lat          float64    `json:"lat,omitempty"`
	Lng          float64    `json:"lng,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	DrawnAt      *time.Time `json:"drawnAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// OutboxEntry is one not-yet-synced conditional write, replayed against
// the remote store in id order when connectivity allows.
type OutboxEntry struct {
	Id              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TicketId        string    `json:"ticketId" gorm:"index;type:varchar(64)"`
	Payload         string    `json:"payload" gorm:"type:text"`
	ExpectedVersion int64     `json:"expectedVersion"`
	Attempts        int       `json:"attempts"`
	LastError       string    `json:"lastError,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NotificationLog records every emitted state-change event for the
// admin log view.
type NotificationLog struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TicketId  string    `json:"ticketId" gorm:"index;type:varchar(64)"`
	DrawId    string    `json:"drawId" gorm:"index;type:varchar(64)"`
	OwnerRef  string    `json:"ownerRef" gorm:"type:varchar(128)"`
	NewState  string    `json:"newState" gorm:"type:varchar(16)"`
	Message   string    `json:"message" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Setting struct {
	Id    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" gorm:"type:varchar(255);uniqueIndex"`
	Value string `json:"value" gorm:"type:text"`
}

type User struct {
	Id         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Username   string `json:"username" gorm:"type:varchar(64);uniqueIndex"`
	Password   string `json:"-" gorm:"type:varchar(255)"`
	TotpSecret string `json:"-" gorm:"type:varchar(64)"`
}
