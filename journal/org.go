package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatRealizationOrg renders a realization as an Org-mode entry. Facts go
// in the PROPERTIES drawer; the Notes heading is left for the reader.
func FormatRealizationOrg(r RealizationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %s (%s)\n", r.Instrument, r.Kind, r.Side, shortID(r.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", r.ID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", r.Instrument)
	fmt.Fprintf(&b, ":SEQ: %d\n", r.Seq)
	fmt.Fprintf(&b, ":KIND: %s\n", r.Kind)
	fmt.Fprintf(&b, ":SIDE: %s\n", r.Side)
	if r.LegID != 0 {
		fmt.Fprintf(&b, ":LEG: %d\n", r.LegID)
	}
	fmt.Fprintf(&b, ":VOLUME: %s\n", r.Volume.String())
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", r.EntryPrice.StringFixed(5))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", r.ExitPrice.StringFixed(5))
	fmt.Fprintf(&b, ":COMMISSION: %s\n", r.Commission.StringFixed(2))
	fmt.Fprintf(&b, ":REALIZED: %s\n", r.Realized.StringFixed(2))
	fmt.Fprintf(&b, ":TIME: %s\n", r.Time.UTC().Format(time.RFC3339))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")
	return b.String()
}

// FormatRealizationsOrg renders several entries separated by blank lines.
func FormatRealizationsOrg(recs []RealizationRecord) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatRealizationOrg(r))
	}
	return b.String()
}

// FormatSummaryOrg renders a Summary as an Org table.
func FormatSummaryOrg(title string, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s\n", title)
	b.WriteString("| count | wins | losses | gross profit | gross loss | commission | net | profit factor |\n")
	b.WriteString("|-------+------+--------+--------------+------------+------------+-----+---------------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %s | %s | %s | %s | %s |\n",
		s.Count, s.Wins, s.Losses,
		s.GrossProfit.StringFixed(2),
		s.GrossLoss.StringFixed(2),
		s.Commission.StringFixed(2),
		s.Net().StringFixed(2),
		s.ProfitFactor().StringFixed(2),
	)
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
