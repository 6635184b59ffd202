package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"hoopscan/internal/geometry"
	"hoopscan/internal/hoop"
)

// addPatternCommands adds pattern management commands.
func addPatternCommands(rootCmd *cobra.Command, app *App) {
	patternCmd := &cobra.Command{
		Use:   "pattern",
		Short: "Manage hoop patterns",
	}
	patternCmd.AddCommand(newPatternListCmd(app))
	patternCmd.AddCommand(newPatternShowCmd(app))
	patternCmd.AddCommand(newPatternCreateCmd(app))
	patternCmd.AddCommand(newPatternDeleteCmd(app))
	patternCmd.AddCommand(newPatternEditCmd(app))
	rootCmd.AddCommand(patternCmd)
}

func newPatternListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

			if output.IsJSON() {
				return output.JSON(patterns)
			}
			if len(patterns) == 0 {
				output.Dim("No patterns stored. Use 'hoopscan pattern create' to add one.")
				return nil
			}

			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"ID", "Name", "Symbol", "Timeframe", "Hoops", "Smoothing", "Cooldown", "Overlap"}),
			)
			for _, p := range patterns {
				smoothing := string(p.SmoothingType)
				if p.SmoothingType == hoop.SmoothingSMA || p.SmoothingType == hoop.SmoothingEMA {
					smoothing = fmt.Sprintf("%s(%d)", p.SmoothingType, p.SmoothingPeriod)
				}
				table.Append([]string{
					p.ID, p.Name, p.Symbol, p.Timeframe,
					fmt.Sprintf("%d", len(p.Hoops)), smoothing,
					fmt.Sprintf("%d", p.CooldownBars), fmt.Sprintf("%v", p.AllowOverlap),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newPatternShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pattern-id>",
		Short: "Show a pattern's hoop chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

			if output.IsJSON() {
				return output.JSON(p)
			}

			output.Bold("%s (%s)", p.Name, p.ID)
			output.Printf("Symbol: %s  Timeframe: %s  Combine: %s\n", p.Symbol, p.Timeframe, p.CombineMode)
			output.Printf("Cooldown: %d bars  Overlap: %v\n\n", p.CooldownBars, p.AllowOverlap)

			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"#", "Name", "Band %", "Distance", "Tolerance", "Anchor"}),
			)
			for i, h := range p.Hoops {
				table.Append([]string{
					fmt.Sprintf("%d", i), h.Name, formatBand(h),
					fmt.Sprintf("%d", h.Distance), fmt.Sprintf("%d", h.Tolerance), string(h.AnchorMode),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newPatternCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or replace a pattern from a JSON definition",
		Long: `Create a pattern from a JSON file containing the hoop chain and
pattern-level policy. The definition is validated before it is stored.`,
		Example: `  hoopscan pattern create --file double-bottom.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			file, _ := cmd.Flags().GetString("file")
			data, err := os.ReadFile(file)
			if err != nil {
				output.Error("Failed to read %s: %v", file, err)
				return err
			}

			var p hoop.Pattern
			if err := json.Unmarshal(data, &p); err != nil {
				output.Error("Invalid pattern JSON: %v", err)
				return err
			}
			if err := p.Validate(); err != nil {
				output.Error("Invalid pattern definition: %v", err)
				return err
			}

			if err := app.Store.SavePattern(ctx, &p); err != nil {
				output.Error("Failed to save pattern: %v", err)
				return err
			}
			app.Logger.Info().Str("pattern", p.ID).Int("hoops", len(p.Hoops)).Msg("Pattern saved")
			output.Success("Saved pattern %s with %d hoops", p.ID, len(p.Hoops))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "pattern definition JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newPatternDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pattern-id>",
		Short: "Delete a stored pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}
			if err := app.Store.DeletePattern(ctx, args[0]); err != nil {
				output.Error("Failed to delete pattern: %v", err)
				return err
			}
			output.Success("Deleted pattern %s", args[0])
			return nil
		},
	}
}

func newPatternEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <pattern-id>",
		Short: "Apply a zone-edge edit to one hoop",
		Long: `Recompute one hoop's parameters from a data-space zone edit, the
same inversion the interactive editor performs when an edge of a hoop's
price/time zone is dragged. TOP and BOTTOM take a price value; LEFT and
RIGHT take a bar index. The anchor flags give the chain's origin.`,
		Example: `  hoopscan pattern edit db-1 --hoop 0 --edge TOP --value 103.5 --anchor-price 100
  hoopscan pattern edit db-1 --hoop 1 --edge RIGHT --value 14 --anchor-price 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			hoopIndex, _ := cmd.Flags().GetInt("hoop")
			edge, _ := cmd.Flags().GetString("edge")
			value, _ := cmd.Flags().GetFloat64("value")
			anchorBar, _ := cmd.Flags().GetInt("anchor-bar")
			anchorPrice, _ := cmd.Flags().GetFloat64("anchor-price")

			p, err := app.Store.GetPattern(ctx, args[0])
			if err != nil {
				output.Error("Failed to load pattern: %v", err)
				return err
			}

			edit := geometry.Edit{
				HoopIndex: hoopIndex,
				Edge:      geometry.EdgeKind(strings.ToUpper(edge)),
				Value:     value,
			}
			updated, err := geometry.Apply(p, anchorBar, anchorPrice, edit)
			if err != nil {
				output.Error("Edit rejected: %v", err)
				return err
			}
			if err := p.ReplaceHoop(hoopIndex, updated); err != nil {
				output.Error("Edit rejected: %v", err)
				return err
			}
			if err := app.Store.SavePattern(ctx, p); err != nil {
				output.Error("Failed to save pattern: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("Hoop %d updated: band %s, distance %d, tolerance %d",
				hoopIndex, formatBand(updated), updated.Distance, updated.Tolerance)
			return nil
		},
	}
	cmd.Flags().Int("hoop", 0, "hoop index to edit")
	cmd.Flags().String("edge", "", "zone edge: TOP, BOTTOM, LEFT, RIGHT")
	cmd.Flags().Float64("value", 0, "new data-space value (price or bar index)")
	cmd.Flags().Int("anchor-bar", 0, "chain origin anchor bar")
	cmd.Flags().Float64("anchor-price", 0, "chain origin anchor price")
	cmd.MarkFlagRequired("edge")
	cmd.MarkFlagRequired("value")
	cmd.MarkFlagRequired("anchor-price")
	return cmd
}
