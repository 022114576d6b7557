package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/payment"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/tier"
)

const timeLayout = "2006-01-02 15:04"

// printer renders command results as JSON or colored text.
type printer struct {
	format   string
	w        io.Writer
	occupied *color.Color
	free     *color.Color
	warn     *color.Color
	bold     *color.Color
}

func newPrinter(opts *RootOptions, w io.Writer) *printer {
	p := &printer{
		format:   opts.Format,
		w:        w,
		occupied: color.New(color.FgRed, color.Bold),
		free:     color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		bold:     color.New(color.Bold),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{p.occupied, p.free, p.warn, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// source reports which tier answered. Anything but the remote tier is
// highlighted since billing linkage is missing there.
func (p *printer) source(t tier.Tier, degraded bool) {
	line := "source: " + t.String()
	if degraded {
		line += " (degraded: no session or bill recorded)"
	}
	if t != tier.Remote || degraded {
		p.warn.Fprintln(p.w, line)
		return
	}
	fmt.Fprintln(p.w, line)
}

func (p *printer) status(rec table.TableStatus) string {
	if rec.Occupied {
		return p.occupied.Sprint("occupied")
	}
	return p.free.Sprint("free")
}

func (p *printer) tables(snap table.Snapshot) error {
	if p.format == "json" {
		return p.json(snap)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tTYPE\tSTATUS\tSINCE\tSERVER\tORDER")
	for _, rec := range snap.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Label, rec.Type, p.status(rec), formatTime(rec.StartTime), deref(rec.Server), deref(rec.OrderID))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p.source(snap.Source, false)
	return nil
}

func (p *printer) labels(labels []string, source tier.Tier) error {
	if p.format == "json" {
		return p.json(map[string]any{"labels": labels, "source": source})
	}
	for _, l := range labels {
		p.free.Fprintln(p.w, l)
	}
	p.source(source, false)
	return nil
}

func (p *printer) started(res *session.StartResult) error {
	if p.format == "json" {
		return p.json(res)
	}
	fmt.Fprintf(p.w, "%s occupied since %s\n", p.bold.Sprint(res.Table.Label), formatTime(res.Table.StartTime))
	if res.Session != nil {
		fmt.Fprintf(p.w, "session %s  billing %s\n", res.Session.SessionID, res.Session.BillingID)
	}
	p.source(res.Source, res.Degraded)
	return nil
}

func (p *printer) stopped(res *session.StopResult) error {
	if p.format == "json" {
		return p.json(res)
	}
	fmt.Fprintf(p.w, "%s is %s\n", p.bold.Sprint(res.Label), p.free.Sprint("free"))
	if res.Bill != nil {
		if err := p.billText(*res.Bill); err != nil {
			return err
		}
	}
	p.source(res.Source, res.Degraded)
	return nil
}

func (p *printer) moved(res *session.MoveResult) error {
	if p.format == "json" {
		return p.json(res)
	}
	fmt.Fprintf(p.w, "session %s moved %s -> %s\n", res.Session.SessionID, res.From.Label, p.bold.Sprint(res.To.Label))
	p.source(res.Source, false)
	return nil
}

func (p *printer) items(items []billing.ItemLine) error {
	if p.format == "json" {
		return p.json(items)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tPRICE\tTOTAL")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", item.Name, item.Quantity, item.UnitPrice, item.Total())
	}
	fmt.Fprintf(tw, "\t\t\t%s\n", p.bold.Sprint(billing.ItemsCost(items)))
	return tw.Flush()
}

func (p *printer) bill(bill *billing.Bill) error {
	if p.format == "json" {
		return p.json(bill)
	}
	return p.billText(*bill)
}

func (p *printer) billText(bill billing.Bill) error {
	fmt.Fprintf(p.w, "bill %s  table %s  %s - %s\n",
		bill.BillID, bill.TableLabel, formatTime(&bill.StartTime), formatTime(bill.EndTime))
	if len(bill.Items) > 0 {
		if err := p.items(bill.Items); err != nil {
			return err
		}
	}
	fmt.Fprintf(p.w, "items %s  time %s  total %s\n", bill.ItemsCost, bill.TimeCost, p.bold.Sprint(bill.TotalAmount))
	return nil
}

func (p *printer) bills(bills []billing.Bill) error {
	if p.format == "json" {
		return p.json(bills)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BILL\tTABLE\tSERVER\tEND\tTOTAL")
	for _, b := range bills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.BillID, b.TableLabel, b.ServerName, formatTime(b.EndTime), b.TotalAmount)
	}
	return tw.Flush()
}

func (p *printer) sessions(sessions []billing.Session) error {
	if p.format == "json" {
		return p.json(sessions)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTABLE\tSERVER\tSTART\tEND\tSTATUS")
	for _, s := range sessions {
		status := string(s.Status)
		if s.Status == billing.StatusActive {
			status = p.occupied.Sprint(status)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SessionID, s.TableLabel, s.ServerName, formatTime(&s.StartTime), formatTime(s.EndTime), status)
	}
	return tw.Flush()
}

func (p *printer) identity(id payment.Identity) error {
	if p.format == "json" {
		return p.json(id)
	}
	fmt.Fprintf(p.w, "session %s\nbilling %s\nstrategy %s\n", id.SessionID, id.BillingID, id.Strategy)
	if id.Synthesized {
		p.warn.Fprintln(p.w, "synthesized identity: confirm before submitting the payment")
	}
	return nil
}

func (p *printer) tierStatus(s app.Status) error {
	if p.format == "json" {
		return p.json(s)
	}
	fmt.Fprintf(p.w, "remote configured: %t\ndatabase usable: %t\n", s.RemoteConfigured, s.DatabaseUsable)
	p.source(s.Source, false)
	return nil
}

func (p *printer) message(format string, args ...any) error {
	if p.format == "json" {
		return p.json(map[string]string{"message": fmt.Sprintf(format, args...)})
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
