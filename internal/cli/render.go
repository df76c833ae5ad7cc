// internal/cli/render.go
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"creator-match/internal/models"
)

func renderRecord(w io.Writer, rec *models.AnalysisRecord) {
	fmt.Fprintf(w, "analysis %s  fingerprint %s\n", rec.ID, rec.Fingerprint)
	fmt.Fprintf(w, "created %s  expires %s\n\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.ExpiresAt.Format("2006-01-02 15:04"))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Channel", "Followers", "Tier", "Total", "Cat", "Loc", "Aud", "Style", "Infl", "Conf", "Reasons"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 12, WidthMax: 60},
	})

	for i, m := range rec.Matches {
		b := m.Breakdown
		t.AppendRow(table.Row{
			i + 1,
			m.Candidate.DisplayName,
			m.Candidate.Followers,
			m.InfluenceTier,
			m.TotalScore,
			b.Category, b.Location, b.Audience, b.Style, b.Influence,
			m.Confidence,
			strings.Join(m.Reasons, "; "),
		})
	}

	s := rec.Stats
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d matches", len(rec.Matches)), "", "", "", "", "", "", "", "", "",
		fmt.Sprintf("discovered %d, enriched %d, scored %d, below threshold %d", s.Discovered, s.Enriched, s.Scored, s.BelowThreshold)})
	t.Render()

	if s.Partial {
		fmt.Fprintln(w, "\nresult is partial: the run deadline elapsed")
	}
	if s.QuotaDenied {
		fmt.Fprintln(w, "provider quota was exhausted during this run")
	}
}
