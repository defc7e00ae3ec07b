package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/fillbook/config"
	"github.com/rustyeddy/fillbook/engine"
	"github.com/rustyeddy/fillbook/feed"
	"github.com/rustyeddy/fillbook/journal"
	"github.com/rustyeddy/fillbook/logs"
	"github.com/rustyeddy/fillbook/metrics"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV file of fills through the ledgers",
	Long: `Replay confirmed fills from a CSV file and print positions, realized
PnL and risk figures per instrument.

Rows are time,instrument,side,price,volume[,commission[,id]]. Hedge-mode
instruments also accept time,instrument,CLOSE_PAIR|CLOSE_ALL,exit and any
instrument accepts time,instrument,REALIZE,amount.

Examples:
  fillbook replay -i fills.csv
  fillbook replay -f fillbook.yaml -i fills.csv --mark EUR_USD=1.0850
  fillbook replay -f fillbook.yaml -i fills.csv --metrics-addr :9102 --hold`,
	RunE: runReplay,
}

var (
	replayConfigPath  string
	replayFillsPath   string
	replayDBPath      string
	replayNoJournal   bool
	replayFrom        string
	replayTo          string
	replayMarks       map[string]string
	replayMetricsAddr string
	replayHold        bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "f", "", "path to config file (default: built-in defaults)")
	replayCmd.Flags().StringVarP(&replayFillsPath, "fills", "i", "", "CSV file of fills (required)")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path, overrides the config journal")
	replayCmd.Flags().BoolVar(&replayNoJournal, "no-journal", false, "do not journal realizations")
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "skip fills before this RFC3339 time")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "skip fills at or after this RFC3339 time")
	replayCmd.Flags().StringToStringVar(&replayMarks, "mark", nil, "mark prices for the report, INSTRUMENT=PRICE (default: last traded)")
	replayCmd.Flags().StringVar(&replayMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	replayCmd.Flags().BoolVar(&replayHold, "hold", false, "keep serving metrics after the replay until interrupted")
	_ = replayCmd.MarkFlagRequired("fills")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayFillsPath == "" {
		return errors.New("--fills is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := replayConfig()
	if err != nil {
		return err
	}
	if err := logs.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logs: %w", err)
	}
	defer logs.Close()

	from, err := parseBound(replayFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseBound(replayTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	marks, err := parseMarks(replayMarks)
	if err != nil {
		return err
	}

	src, err := feed.NewCSVFeed(replayFillsPath, from, to)
	if err != nil {
		return fmt.Errorf("open fills: %w", err)
	}
	defer src.Close()

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	instruments := make([]engine.Instrument, 0, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		instruments = append(instruments, engine.Instrument{
			Name:        ic.Name,
			Constraints: ic.Constraints(),
			Hedge:       ic.Hedge,
		})
	}
	e, err := engine.New(j, instruments...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	marked := &markingSource{src: src, marks: map[string]decimal.Decimal{}}

	logs.WithFields(logs.Fields{
		"fills":       replayFillsPath,
		"instruments": e.Instruments(),
		"journal":     cfg.Journal.Type,
	}).Info("replay starting")

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		return e.Run(runCtx)
	})

	var srv *http.Server
	if replayMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Addr: replayMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logs.Infof("serving metrics on %s/metrics", replayMetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancelRun()
		if srv != nil {
			defer func() {
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutCtx)
			}()
		}

		st, err := feed.Replay(runCtx, marked, e)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}

		for name, p := range marks {
			marked.marks[name] = p
		}
		reports, err := buildReports(cfg, e, marked.marks)
		if err != nil {
			return err
		}
		writeReport(cmd.OutOrStdout(), cfg, st, reports)

		if replayHold && srv != nil {
			logs.Info("holding metrics endpoint, interrupt to exit")
			<-gctx.Done()
		}
		return nil
	})

	return g.Wait()
}

func replayConfig() (*config.Config, error) {
	var cfg *config.Config
	if replayConfigPath != "" {
		c, err := config.LoadFromFile(replayConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	} else {
		cfg = config.Default()
		config.ApplyEnv(cfg)
	}

	switch {
	case replayNoJournal:
		cfg.Journal = config.JournalConfig{Type: "none"}
	case replayDBPath != "":
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: replayDBPath}
	}
	if replayMetricsAddr == "" {
		replayMetricsAddr = cfg.Metrics.Addr
	}
	return cfg, cfg.Validate()
}

// markingSource remembers the last traded or exit price per instrument.
type markingSource struct {
	src   feed.Source
	marks map[string]decimal.Decimal
}

func (m *markingSource) Next() (feed.Event, bool, error) {
	ev, ok, err := m.src.Next()
	if err != nil || !ok {
		return ev, ok, err
	}
	switch ev.Kind {
	case feed.KindFill:
		m.marks[ev.Instrument] = ev.Fill.Price
	case feed.KindClosePair, feed.KindCloseAll:
		if ev.Amount.IsPositive() {
			m.marks[ev.Instrument] = ev.Amount
		}
	}
	return ev, ok, nil
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseMarks(in map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for name, v := range in {
		p, err := decimal.NewFromString(v)
		if err != nil || !p.IsPositive() {
			return nil, fmt.Errorf("--mark %s=%s: price must be a positive number", name, v)
		}
		out[name] = p
	}
	return out, nil
}
