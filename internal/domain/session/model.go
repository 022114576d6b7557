package session

import (
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/tier"
)

// StartRequest opens a session on a table.
type StartRequest struct {
	Label      string `json:"-"`
	ServerID   string `json:"serverId"`
	ServerName string `json:"serverName"`
}

// Started is the remote response to a start request.
type Started struct {
	Session billing.Session   `json:"session"`
	Table   table.TableStatus `json:"table"`
}

// Moved is the remote response to a move request.
type Moved struct {
	Session billing.Session   `json:"session"`
	From    table.TableStatus `json:"from"`
	To      table.TableStatus `json:"to"`
}

// StartResult describes a started session. A degraded start has no
// Session: only the table record was flipped to occupied.
type StartResult struct {
	Table    *table.TableStatus `json:"table"`
	Session  *billing.Session   `json:"session,omitempty"`
	Source   tier.Tier          `json:"source"`
	Degraded bool               `json:"degraded"`
}

// StopResult describes a stopped session. Bill is nil for degraded stops
// and for forced releases.
type StopResult struct {
	Label    string             `json:"label"`
	Table    *table.TableStatus `json:"table,omitempty"`
	Bill     *billing.Bill      `json:"bill,omitempty"`
	Source   tier.Tier          `json:"source"`
	Degraded bool               `json:"degraded"`
}

// MoveResult describes a session moved between tables.
type MoveResult struct {
	Session billing.Session   `json:"session"`
	From    table.TableStatus `json:"from"`
	To      table.TableStatus `json:"to"`
	Source  tier.Tier         `json:"source"`
}
