package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
)

// TableFormatter formats rows as a human-readable table.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	now func() time.Time
}

func (f *TableFormatter) Format(r Row) (string, error) {
	return f.FormatList([]Row{r})
}

func (f *TableFormatter) FormatList(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "No instances found\n", nil
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "ID\tKIND\tRESOURCE\tPHASE\tIP\tBACKUPS\tUPDATED")
	}

	for _, r := range rows {
		resource := dash(r.ResourceID)
		if r.UseExternal {
			resource += " (external)"
		}
		updated := "-"
		if !r.UpdatedAt.IsZero() {
			updated = units.HumanDuration(now().Sub(r.UpdatedAt)) + " ago"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, dash(r.Kind), resource, dash(string(r.Phase)), dash(r.IP), len(r.Backups), updated)
	}

	_ = w.Flush()
	return buf.String(), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
