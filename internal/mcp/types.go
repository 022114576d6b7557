package mcp

import (
	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/tier"
)

type EmptyParams struct{}

type LabelParams struct {
	Label string `json:"label" jsonschema:"table label, e.g. T1"`
}

type UpsertTableParams struct {
	Label    string `json:"label" jsonschema:"table label"`
	Type     string `json:"type,omitempty" jsonschema:"table type, e.g. pool or snooker"`
	Occupied bool   `json:"occupied,omitempty" jsonschema:"whether the table is occupied"`
	OrderID  string `json:"order_id,omitempty" jsonschema:"order linked to the occupancy"`
	Server   string `json:"server,omitempty" jsonschema:"staff member serving the table"`
}

type StartSessionParams struct {
	Label      string `json:"label" jsonschema:"table label"`
	ServerID   string `json:"server_id,omitempty" jsonschema:"staff member id"`
	ServerName string `json:"server_name,omitempty" jsonschema:"staff member display name"`
}

type MoveSessionParams struct {
	From string `json:"from" jsonschema:"label of the occupied table"`
	To   string `json:"to" jsonschema:"label of the free target table"`
}

type ItemParams struct {
	Name      string `json:"name" jsonschema:"item name"`
	Quantity  int64  `json:"quantity" jsonschema:"positive quantity"`
	UnitPrice string `json:"unit_price" jsonschema:"decimal unit price, e.g. 2.50"`
}

type ReplaceItemsParams struct {
	Label string       `json:"label" jsonschema:"table label"`
	Items []ItemParams `json:"items" jsonschema:"the complete new item list"`
}

type ListBillsParams struct {
	From   string `json:"from,omitempty" jsonschema:"start of range, RFC3339 or YYYY-MM-DD"`
	To     string `json:"to,omitempty" jsonschema:"end of range, RFC3339 or YYYY-MM-DD (inclusive day)"`
	Table  string `json:"table,omitempty" jsonschema:"table label filter"`
	Server string `json:"server,omitempty" jsonschema:"server id or name filter"`
}

type ListSessionsParams struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of sessions"`
	From   string `json:"from,omitempty" jsonschema:"start of range, RFC3339 or YYYY-MM-DD"`
	To     string `json:"to,omitempty" jsonschema:"end of range, RFC3339 or YYYY-MM-DD (inclusive day)"`
	Table  string `json:"table,omitempty" jsonschema:"table label filter"`
	Server string `json:"server,omitempty" jsonschema:"server id or name filter"`
}

type BillParams struct {
	BillID string `json:"bill_id" jsonschema:"bill id"`
}

type SetRateParams struct {
	PerMinute string `json:"per_minute" jsonschema:"decimal amount charged per started minute"`
}

type ResolvePaymentParams struct {
	BillID     string `json:"bill_id" jsonschema:"bill id"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"session id carried by the bill, if known"`
	BillingID  string `json:"billing_id,omitempty" jsonschema:"billing id carried by the bill, if known"`
	TableLabel string `json:"table_label,omitempty" jsonschema:"table the bill belongs to, if known"`
}

type TableResponse struct {
	Table  *table.TableStatus `json:"table"`
	Source tier.Tier          `json:"source"`
}

type SourceResponse struct {
	Source tier.Tier `json:"source"`
}

type LabelsResponse struct {
	Labels []string  `json:"labels"`
	Source tier.Tier `json:"source"`
}

type RateResponse struct {
	PerMinute string `json:"perMinute"`
}

type StatusResponse = app.Status
