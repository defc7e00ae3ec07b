package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/fillbook/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the realization journal",
	Long: `Query and display realization records from the SQLite journal.

Subcommands:
  event   - Show one realization by ID
  day     - List realizations on a day
  summary - Gross gains, losses and profit factor over a range

Examples:
  fillbook journal event 01HS0ABCDEFGHJKMNPQRSTVWXY
  fillbook journal day 2024-01-15 --instrument EUR_USD
  fillbook journal summary --from 2024-01-01 --to 2024-02-01`,
}

var journalEventCmd = &cobra.Command{
	Use:   "event <id>",
	Short: "Show one realization",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEvent,
}

var journalDayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "List realizations on a day, today by default",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalDay,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize realizations over a date range",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var (
	journalDBPath     string
	journalInstrument string
	journalFrom       string
	journalTo         string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalEventCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./fillbook.sqlite", "path to SQLite journal DB")
	journalCmd.PersistentFlags().StringVar(&journalInstrument, "instrument", "", "only this instrument")
	journalSummaryCmd.Flags().StringVar(&journalFrom, "from", "", "first day YYYY-MM-DD (default: today)")
	journalSummaryCmd.Flags().StringVar(&journalTo, "to", "", "day after the last YYYY-MM-DD (default: from + 1 day)")
}

func runJournalEvent(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetRealization(args[0])
	if err != nil {
		return fmt.Errorf("get realization: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRealizationOrg(rec))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	loc := time.Local
	day := time.Now().In(loc).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListRealizationsBetween(journalInstrument, start, end)
	if err != nil {
		return fmt.Errorf("query realizations: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRealizationsOrg(recs))
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	loc := time.Local
	from := journalFrom
	if from == "" {
		from = time.Now().In(loc).Format("2006-01-02")
	}
	start, end, err := dayBounds(loc, from)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if journalTo != "" {
		if end, _, err = dayBounds(loc, journalTo); err != nil {
			return fmt.Errorf("to: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("--to must be after --from")
	}

	s, err := j.SummaryBetween(journalInstrument, start, end)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	title := fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if journalInstrument != "" {
		title = journalInstrument + " " + title
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatSummaryOrg(title, s))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
