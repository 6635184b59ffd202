package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"hoopscan/internal/hoop"
	"hoopscan/internal/logging"
	"hoopscan/internal/matcher"
	"hoopscan/internal/models"
	"hoopscan/internal/store"
)

// addScanCommands adds match search commands.
func addScanCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newScanAllCmd(app))
	rootCmd.AddCommand(newActivityCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <pattern-id>",
		Short: "Search a candle series for pattern matches",
		Long: `Run the hoop pattern matcher over a stored candle series.

The series defaults to the pattern's own symbol and timeframe; --symbol and
--timeframe override it. Matches are listed in ascending anchor order.`,
		Example: `  hoopscan scan double-bottom
  hoopscan scan flag-1 --symbol AAPL --timeframe 1day --save
  hoopscan scan flag-1 --workers 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			p, err := app.Store.GetPattern(ctx, args[0])
			if err != nil {
				output.Error("Failed to load pattern: %v", err)
				return err
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			workers, _ := cmd.Flags().GetInt("workers")
			save, _ := cmd.Flags().GetBool("save")
			if symbol == "" {
				symbol = p.Symbol
			}
			if timeframe == "" {
				timeframe = p.Timeframe
			}
			if workers == 0 {
				workers = app.Config.Search.Workers
			}

			candles, err := loadSeries(ctx, app, symbol, timeframe)
			if err != nil {
				output.Error("Failed to load candles: %v", err)
				return err
			}
			if len(candles) == 0 {
				output.Warning("No candles stored for %s %s. Use 'hoopscan data import' first.", symbol, timeframe)
				return nil
			}

			logger := logging.WithSymbol(logging.WithPattern(app.Logger, p.ID), symbol)
			searcher := matcher.NewSearcher(
				matcher.WithLogger(logger),
				matcher.WithWorkers(workers),
			)

			start := time.Now()
			matches, err := searcher.Search(ctx, p.Clone(), candles)
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}
			logging.LogScan(app.Logger, p.ID, symbol, timeframe, len(candles), len(matches), time.Since(start))

			if save && len(matches) > 0 {
				run := &store.MatchRun{
					PatternID: p.ID,
					Symbol:    symbol,
					Timeframe: timeframe,
					RunAt:     time.Now(),
					Matches:   matches,
				}
				if err := app.Store.SaveMatchRun(ctx, run); err != nil {
					output.Warning("Failed to save match run: %v", err)
				} else {
					output.Dim("Saved run %d", run.ID)
				}
			}

			if output.IsJSON() {
				return output.JSON(matches)
			}
			return displayMatches(cmd, output, p, candles, matches)
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "series symbol (default: pattern symbol)")
	cmd.Flags().StringP("timeframe", "t", "", "series timeframe (default: pattern timeframe)")
	cmd.Flags().IntP("workers", "w", 0, "parallel evaluation workers (default: config)")
	cmd.Flags().Bool("save", false, "persist the match run")
	return cmd
}

func newScanAllCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-all",
		Short: "Run every stored pattern against its series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			patterns, err := app.Store.ListPatterns(ctx)
			if err != nil {
				output.Error("Failed to list patterns: %v", err)
				return err
			}
			if len(patterns) == 0 {
				output.Dim("No patterns stored.")
				return nil
			}

			workers, _ := cmd.Flags().GetInt("workers")
			if workers == 0 {
				workers = app.Config.Search.Workers
			}
			searcher := matcher.NewSearcher(
				matcher.WithLogger(app.Logger),
				matcher.WithWorkers(workers),
			)

			bar := progressbar.NewOptions(len(patterns),
				progressbar.OptionSetDescription("scanning"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			type result struct {
				Pattern string          `json:"pattern"`
				Symbol  string          `json:"symbol"`
				Matches []matcher.Match `json:"matches"`
				Err     string          `json:"error,omitempty"`
			}
			var results []result
			for _, p := range patterns {
				candles, err := loadSeries(ctx, app, p.Symbol, p.Timeframe)
				if err != nil {
					results = append(results, result{Pattern: p.ID, Symbol: p.Symbol, Err: err.Error()})
					bar.Add(1)
					continue
				}
				matches, err := searcher.Search(ctx, p.Clone(), candles)
				r := result{Pattern: p.ID, Symbol: p.Symbol, Matches: matches}
				if err != nil {
					r.Err = err.Error()
				}
				results = append(results, r)
				bar.Add(1)
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			for _, r := range results {
				if r.Err != "" {
					output.Warning("%s (%s): %s", r.Pattern, r.Symbol, r.Err)
					continue
				}
				output.Printf("%-20s %-10s %d matches\n", r.Pattern, r.Symbol, len(r.Matches))
			}
			return nil
		},
	}
	cmd.Flags().IntP("workers", "w", 0, "parallel evaluation workers (default: config)")
	return cmd
}

func newActivityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity <pattern-id>",
		Short: "Show per-bar pattern activity under the pattern's combine mode",
		Long: `Run the matcher and report which bars the pattern is active on, with
each match marking the bars from its anchor through its completion.

Combine modes other than pattern_only need an external condition series:
a file with one 0 or 1 per line, aligned to the candle series, via --condition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}
			p, err := app.Store.GetPattern(ctx, args[0])
			if err != nil {
				output.Error("Failed to load pattern: %v", err)
				return err
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if symbol == "" {
				symbol = p.Symbol
			}
			if timeframe == "" {
				timeframe = p.Timeframe
			}
			candles, err := loadSeries(ctx, app, symbol, timeframe)
			if err != nil {
				output.Error("Failed to load candles: %v", err)
				return err
			}

			var condition []bool
			if path, _ := cmd.Flags().GetString("condition"); path != "" {
				condition, err = readConditionFile(path)
				if err != nil {
					output.Error("Failed to read condition series: %v", err)
					return err
				}
			}

			searcher := matcher.NewSearcher(
				matcher.WithLogger(logging.WithPattern(app.Logger, p.ID)),
				matcher.WithWorkers(app.Config.Search.Workers),
			)
			matches, err := searcher.Search(ctx, p.Clone(), candles)
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}

			active := matcher.ActiveBars(matches, len(candles))
			combined, err := matcher.Combine(p.CombineMode, active, condition)
			if err != nil {
				output.Error("Failed to combine activity: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(struct {
					Pattern string `json:"pattern"`
					Mode    string `json:"combine_mode"`
					Active  []bool `json:"active"`
				}{p.ID, string(p.CombineMode), combined})
			}
			output.Success("%s (%s): active on %d of %d bars",
				p.Name, p.CombineMode, countTrue(combined), len(combined))
			for _, r := range activeRanges(combined) {
				output.Printf("  bars %d-%d  %s to %s\n", r[0], r[1],
					candles[r[0]].Timestamp.Format("2006-01-02"),
					candles[r[1]].Timestamp.Format("2006-01-02"))
			}
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "series symbol (default: pattern symbol)")
	cmd.Flags().StringP("timeframe", "t", "", "series timeframe (default: pattern timeframe)")
	cmd.Flags().String("condition", "", "file of 0/1 lines, one per bar")
	return cmd
}

func readConditionFile(path string) ([]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var condition []bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "0":
			condition = append(condition, false)
		case "1":
			condition = append(condition, true)
		default:
			return nil, fmt.Errorf("line %d: want 0 or 1, got %q", len(condition)+1, line)
		}
	}
	return condition, scanner.Err()
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}

// activeRanges collapses a boolean series into [start, end] runs of true bars.
func activeRanges(bits []bool) [][2]int {
	var runs [][2]int
	start := -1
	for i, b := range bits {
		if b && start < 0 {
			start = i
		}
		if !b && start >= 0 {
			runs = append(runs, [2]int{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, len(bits) - 1})
	}
	return runs
}

func newRunsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "runs <pattern-id>",
		Short: "Show saved match runs for a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}
			runs, err := app.Store.GetMatchRuns(ctx, args[0])
			if err != nil {
				output.Error("Failed to load runs: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No saved runs for %s.", args[0])
				return nil
			}
			for _, run := range runs {
				output.Bold("Run %d  %s %s  %s", run.ID, run.Symbol, run.Timeframe,
					run.RunAt.Format(time.RFC3339))
				for _, m := range run.Matches {
					output.Printf("  anchor %d @ %.2f -> completion %d\n",
						m.AnchorBar, m.AnchorPrice, m.CompletionBar)
				}
			}
			return nil
		},
	}
}

func loadSeries(ctx context.Context, app *App, symbol, timeframe string) ([]models.Candle, error) {
	if symbol == "" || timeframe == "" {
		return nil, fmt.Errorf("pattern has no symbol/timeframe; pass --symbol and --timeframe")
	}
	var epoch time.Time
	return app.Store.GetCandles(ctx, symbol, timeframe, epoch, time.Now().Add(24*time.Hour))
}

func displayMatches(cmd *cobra.Command, output *Output, p *hoop.Pattern, candles []models.Candle, matches []matcher.Match) error {
	if len(matches) == 0 {
		output.Dim("No matches.")
		return nil
	}
	output.Success("%d match(es) for %s", len(matches), p.Name)

	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Anchor Bar", "Anchor Time", "Anchor Price", "Completion Bar", "Completion Time", "Hits"}),
	)
	for _, m := range matches {
		table.Append([]string{
			fmt.Sprintf("%d", m.AnchorBar),
			candles[m.AnchorBar].Timestamp.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", m.AnchorPrice),
			fmt.Sprintf("%d", m.CompletionBar),
			candles[m.CompletionBar].Timestamp.Format("2006-01-02 15:04"),
			formatHits(m),
		})
	}
	table.Render()
	return nil
}
