package cli

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"GhibliScanner/internal/domain"
)

// StatusInput holds input for the status view.
type StatusInput struct {
	Follow   bool
	Interval time.Duration
	Output   string
}

// Status prints the toggle and counters, optionally refreshing them until ctx ends.
func (c ScannerCmd) Status(ctx context.Context, in StatusInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	view, err := c.svc.Surface().MainView(ctx)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return printJSON(view)
	}

	state := pterm.FgGreen.Sprint("enabled")
	if !view.Enabled {
		state = pterm.FgRed.Sprint("disabled")
	}
	pterm.Println("Scanner: " + state)
	printStats(view.Stats)

	if !in.Follow {
		return nil
	}

	interval := in.Interval
	if interval <= 0 {
		interval = c.svc.StatsInterval()
	}
	return c.svc.Surface().PollStats(ctx, interval, printStats)
}

// Toggle enables or disables scanning.
func (c ScannerCmd) Toggle(ctx context.Context, enabled bool) error {
	if err := c.svc.Surface().SetEnabled(ctx, enabled); err != nil {
		return err
	}
	if enabled {
		pterm.Success.Println("Scanner enabled")
	} else {
		pterm.Warning.Println("Scanner disabled")
	}
	return nil
}

func printStats(stats domain.Stats) {
	pterm.Printf("Images processed: %d\nImages downloaded: %d\n", stats.Processed, stats.Downloaded)
}

func newStatusCommand(r runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether scanning is enabled and the image counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			interval, _ := cmd.Flags().GetDuration("interval")
			output, _ := cmd.Flags().GetString("output")
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.Status(ctx, StatusInput{Follow: follow, Interval: interval, Output: output})
			})
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "Keep refreshing the counters")
	cmd.Flags().Duration("interval", 0, "Refresh interval for --follow (default from config)")
	cmd.Flags().StringP("output", "o", "", "Output format (json)")
	return cmd
}

func newToggleCommand(r runner, enabled bool) *cobra.Command {
	use, short := "enable", "Enable scanning"
	if !enabled {
		use, short = "disable", "Disable scanning"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.Toggle(ctx, enabled)
			})
		},
	}
}
