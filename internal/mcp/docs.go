package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `tabletime tracks table occupancy and billing for a venue that bills by table time plus ordered items.

Every answer carries a "source" telling which tier served it:
- Remote: the remote service, the only tier that sequences sessions and finalizes bills.
- Database: the venue's relational store, used when the remote service is unreachable.
- Local: the on-device store, the last resort.

Workflow:
1) list_tables or available_tables to see occupancy.
2) start_session / stop_session / move_session / force_free to change it.
   A "degraded" result means only the table record changed: no session or bill exists.
3) list_items / replace_items while a session runs.
4) get_bill then resolve_payment before submitting a payment.
   Never submit a payment whose identity is "synthesized" without confirming it.

See tabletime://docs/tiers for the fallback rules.
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "tabletime://docs/tiers",
		Name:        "tiers",
		Title:       "Storage tiers",
		Description: "How reads and writes fall back between the remote service, the database and the local store",
		Content: `# Storage tiers

Operations try the remote service first, then the relational database, then the local store.

- The remote service is retried on every operation.
- The database is abandoned for the rest of the process after its first failure.
- A local store failure is reported to the caller.

Starting and stopping sessions only fall back for transport failures. A rejection from a
reachable remote service (for example "table is occupied") is returned as is.

Moving a session has no fallback. When the remote service is down, try again later.
`,
	},
	{
		URI:         "tabletime://docs/payments",
		Name:        "payments",
		Title:       "Payment identity",
		Description: "How the (session, billing) identifier pair of a payment is resolved",
		Content: `# Payment identity

resolve_payment tries, in order:

1. The session and billing ids carried by the bill.
2. The same ids from a fresh copy of the bill.
3. The session currently running on the bill's table.
4. A generated session id paired with the bill id, flagged "synthesized".

Blank ids and the nil UUID never count as resolved.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
