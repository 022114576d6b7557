package table

import (
	"strings"
	"time"

	"github.com/rpggio/tabletime/internal/tier"
)

// TableStatus is the occupancy record of one table, keyed by its label.
type TableStatus struct {
	Label     string     `json:"label"`
	Type      string     `json:"type"`
	Occupied  bool       `json:"occupied"`
	OrderID   *string    `json:"orderId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Server    *string    `json:"server,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Normalize enforces the occupancy invariant: StartTime is present exactly
// when the table is occupied. A newly occupied table is stamped with now.
func (t *TableStatus) Normalize(now time.Time) {
	t.Touch(now)
	t.Settle(nil)
}

// Touch trims the label, stamps UpdatedAt and drops the start time of a free
// table. An occupied table without a start time is left for Settle.
func (t *TableStatus) Touch(now time.Time) {
	t.Label = strings.TrimSpace(t.Label)
	if !t.Occupied {
		t.StartTime = nil
	}
	t.UpdatedAt = now.UTC()
}

// Settle resolves the start time of an occupied record written over prev,
// the stored record (nil when there is none). A table that stays occupied
// keeps its start; a newly occupied one starts at UpdatedAt.
func (t *TableStatus) Settle(prev *TableStatus) {
	if !t.Occupied {
		t.StartTime = nil
		return
	}
	var start time.Time
	switch {
	case t.StartTime != nil:
		start = *t.StartTime
	case prev != nil && prev.Occupied && prev.StartTime != nil:
		start = *prev.StartTime
	case !t.UpdatedAt.IsZero():
		start = t.UpdatedAt
	default:
		start = time.Now()
	}
	start = start.UTC()
	t.StartTime = &start
}

// Occupy marks the table occupied from start, served by server.
func (t *TableStatus) Occupy(start time.Time, server string) {
	t.Occupied = true
	startUTC := start.UTC()
	t.StartTime = &startUTC
	t.Server = nil
	if server != "" {
		t.Server = &server
	}
}

// Release marks the table available and drops its order and server links.
func (t *TableStatus) Release() {
	t.Occupied = false
	t.StartTime = nil
	t.OrderID = nil
	t.Server = nil
}

// Snapshot is the full table list together with the tier that produced it.
type Snapshot struct {
	Tables []TableStatus `json:"tables"`
	Source tier.Tier     `json:"source"`
}

// Find returns the record for label, if present.
func (s Snapshot) Find(label string) (TableStatus, bool) {
	for _, t := range s.Tables {
		if t.Label == label {
			return t, true
		}
	}
	return TableStatus{}, false
}

// AvailableLabels returns the labels of all free tables, in list order.
func (s Snapshot) AvailableLabels() []string {
	labels := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		if !t.Occupied {
			labels = append(labels, t.Label)
		}
	}
	return labels
}
