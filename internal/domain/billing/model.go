package billing

import (
	"time"

	"github.com/rpggio/tabletime/internal/money"
)

// SessionStatus represents the lifecycle status of an occupancy session
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusClosed SessionStatus = "closed"
)

// Session is a table's continuous occupancy period, owned by the remote service.
type Session struct {
	SessionID  string        `json:"sessionId"`
	BillingID  string        `json:"billingId"`
	TableLabel string        `json:"tableLabel"`
	ServerID   string        `json:"serverId,omitempty"`
	ServerName string        `json:"serverName,omitempty"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Status     SessionStatus `json:"status"`
}

// ItemLine is one ordered item within a session.
type ItemLine struct {
	ItemID    string      `json:"itemId"`
	Name      string      `json:"name"`
	Quantity  int64       `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
}

// Total returns quantity times unit price.
func (l ItemLine) Total() money.Money {
	return l.UnitPrice.Mul(l.Quantity)
}

// ItemsCost sums the totals of all lines.
func ItemsCost(lines []ItemLine) money.Money {
	total := money.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// Bill is the finalized financial record of a stopped session. It is
// immutable once the remote service has produced it.
type Bill struct {
	BillID      string      `json:"billId"`
	SessionID   string      `json:"sessionId"`
	BillingID   string      `json:"billingId"`
	TableLabel  string      `json:"tableLabel"`
	ServerName  string      `json:"serverName,omitempty"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	ItemsCost   money.Money `json:"itemsCost"`
	TimeCost    money.Money `json:"timeCost"`
	TotalAmount money.Money `json:"totalAmount"`
	Items       []ItemLine  `json:"items"`
}

// BillFilter narrows bill queries. Zero values are ignored.
type BillFilter struct {
	From   time.Time
	To     time.Time
	Table  string
	Server string
}

// SessionFilter narrows session history queries. Zero values are ignored.
type SessionFilter struct {
	Limit  int
	From   time.Time
	To     time.Time
	Table  string
	Server string
}
