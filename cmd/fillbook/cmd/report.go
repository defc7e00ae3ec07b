package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/config"
	"github.com/rustyeddy/fillbook/feed"
	"github.com/rustyeddy/fillbook/risk"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
)

type snapshotter interface {
	Instruments() []string
	Snapshot(instrument string) (book.Snapshot, error)
	Constraints(instrument string) (volume.Constraints, error)
}

type instrumentReport struct {
	Name     string
	Snapshot risk.Snapshot
	Marked   bool
	Mark     decimal.Decimal
	Equity   decimal.Decimal

	Recommended    decimal.Decimal
	RecommendedErr error
	Adjustment     decimal.Decimal

	Decision risk.Decision
}

func policyFrom(rc config.RiskConfig) risk.Policy {
	return risk.Policy{
		MaxFloatingLossPct: decimal.NewFromFloat(rc.MaxFloatingLossPct),
		MaxDrawdown:        decimal.NewFromFloat(rc.MaxDrawdown),
		MaxOpenVolume:      decimal.NewFromFloat(rc.MaxOpenVolume),
		MaxOpenLegs:        rc.MaxOpenLegs,
	}
}

func buildReports(cfg *config.Config, src snapshotter, marks map[string]decimal.Decimal) ([]instrumentReport, error) {
	balance := decimal.NewFromFloat(cfg.Account.Balance)
	fraction := decimal.NewFromFloat(cfg.Risk.Fraction)
	policy := policyFrom(cfg.Risk)

	var out []instrumentReport
	for _, name := range src.Instruments() {
		bs, err := src.Snapshot(name)
		if err != nil {
			return nil, err
		}
		c, err := src.Constraints(name)
		if err != nil {
			return nil, err
		}

		s := risk.New(bs)
		r := instrumentReport{Name: name, Snapshot: s}
		r.Mark, r.Marked = marks[name]
		if !r.Marked {
			// nothing traded: mark at the average so floating is zero
			r.Mark = s.Position.AveragePrice
		}

		r.Equity = balance.Add(s.RealizedPnL())
		if r.Marked {
			r.Equity = r.Equity.Add(s.LegFloatingPnL(r.Mark))
		}

		r.Recommended, r.RecommendedErr = risk.RecommendedVolume(r.Equity, fraction, c)
		if r.RecommendedErr == nil {
			r.Adjustment = s.VolumeAdjustment(r.Recommended, c)
		}
		r.Decision = risk.Evaluate(policy, s, r.Mark, r.Equity)
		out = append(out, r)
	}
	return out, nil
}

func writeReport(w io.Writer, cfg *config.Config, st feed.Stats, reports []instrumentReport) {
	fmt.Fprintf(w, "\nReplay complete: %d events, %d fills, %d rejected, %d leg closes\n",
		st.Events, st.Fills, st.Rejected, st.Closes)
	fmt.Fprintf(w, "  Realized during replay: %s %s\n", st.Realized.StringFixed(2), cfg.Account.Currency)

	for _, r := range reports {
		s := r.Snapshot
		fmt.Fprintf(w, "\n%s (seq %d)\n", r.Name, s.Seq)
		fmt.Fprintf(w, "  Net volume:    %s\n", s.Position.NetVolume.String())
		if !s.Position.IsFlat() {
			fmt.Fprintf(w, "  Average price: %s\n", s.Position.AveragePrice.String())
		}
		if s.Legs != nil {
			fmt.Fprintf(w, "  Open legs:     %d\n", len(s.Legs))
			for _, lg := range s.Legs {
				fmt.Fprintf(w, "    #%d %-4s %s @ %s %s\n", lg.ID, lg.Side, lg.Volume, lg.EntryPrice, strings.ToLower(lg.State.String()))
			}
		}
		fmt.Fprintf(w, "  Realized:      %s (gains %s, losses %s, commission %s)\n",
			s.RealizedPnL().StringFixed(2),
			s.Bucket.TotalGains.StringFixed(2),
			s.Bucket.TotalLosses.StringFixed(2),
			s.Bucket.Commission.StringFixed(2))
		fmt.Fprintf(w, "  Wins/Losses:   %d/%d\n", s.Bucket.Wins, s.Bucket.Losses)

		if r.Marked {
			fmt.Fprintf(w, "  Mark:          %s\n", r.Mark.String())
			fmt.Fprintf(w, "  Floating:      %s (%s%%)\n",
				r.Decision.FloatingPnL.StringFixed(2),
				r.Decision.FloatingPnLPercent.StringFixed(2))
		}
		fmt.Fprintf(w, "  Equity:        %s\n", r.Equity.StringFixed(2))

		if r.RecommendedErr != nil {
			fmt.Fprintf(w, "  Recommended:   none (%v)\n", r.RecommendedErr)
		} else {
			fmt.Fprintf(w, "  Recommended:   %s (adjust %s)\n", r.Recommended.String(), r.Adjustment.String())
		}

		if r.Decision.Allowed {
			fmt.Fprintln(w, "  Risk:          ok")
			continue
		}
		for _, v := range r.Decision.Violations {
			fmt.Fprintf(w, "  Risk:          %s: %s\n", v.Code, v.Msg)
		}
	}
}
