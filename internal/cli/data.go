package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"hoopscan/internal/models"
)

// addDataCommands adds candle data commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Manage candle series",
	}
	dataCmd.AddCommand(newDataImportCmd(app))
	dataCmd.AddCommand(newDataListCmd(app))
	rootCmd.AddCommand(dataCmd)
}

func newDataImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import a candle series from CSV",
		Long: `Import OHLCV candles from a CSV file with a header row of
timestamp,open,high,low,close,volume. Timestamps must be strictly
increasing; duplicates and out-of-order rows are rejected.`,
		Example: `  hoopscan data import aapl-daily.csv --symbol AAPL --timeframe 1day`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")

			f, err := os.Open(args[0])
			if err != nil {
				output.Error("Failed to open %s: %v", args[0], err)
				return err
			}
			defer f.Close()

			candles, err := models.ReadCandlesCSV(f)
			if err != nil {
				output.Error("Import rejected: %v", err)
				return err
			}
			if err := app.Store.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				output.Error("Failed to save candles: %v", err)
				return err
			}

			app.Logger.Info().
				Str("symbol", symbol).
				Str("timeframe", timeframe).
				Int("bars", len(candles)).
				Msg("Candles imported")
			output.Success("Imported %d candles for %s %s", len(candles), symbol, timeframe)
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "series symbol")
	cmd.Flags().StringP("timeframe", "t", "", "series timeframe")
	cmd.MarkFlagRequired("symbol")
	cmd.MarkFlagRequired("timeframe")
	return cmd
}

func newDataListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored candle series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}
			infos, err := app.Store.ListSeries(ctx)
			if err != nil {
				output.Error("Failed to list series: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(infos)
			}
			if len(infos) == 0 {
				output.Dim("No candle series stored.")
				return nil
			}

			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Symbol", "Timeframe", "Bars", "From", "To"}),
			)
			for _, info := range infos {
				table.Append([]string{
					info.Symbol, info.Timeframe, fmt.Sprintf("%d", info.Bars),
					info.From.Format("2006-01-02"), info.To.Format("2006-01-02"),
				})
			}
			table.Render()
			return nil
		},
	}
}
