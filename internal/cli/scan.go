package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ScanInput holds input for a one-shot scan.
type ScanInput struct {
	URLs   []string
	Output string
}

// WatchInput holds input for watching a page.
type WatchInput struct {
	URL string
}

// Scan loads each page once, waits for every candidate and prints a summary.
func (c ScannerCmd) Scan(ctx context.Context, in ScanInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	reports, err := c.svc.ScanPages(ctx, in.URLs)
	if err != nil {
		return err
	}

	view, err := c.svc.Surface().MainView(ctx)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return printJSON(map[string]any{"pages": reports, "stats": view.Stats})
	}

	if len(reports) == 0 {
		pterm.Info.Println("No pages to scan; pass URLs or configure pages")
		return nil
	}

	rows := pterm.TableData{{"Page", "Images", "Candidates", "Error"}}
	for _, r := range reports {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		rows = append(rows, []string{r.URL, strconv.Itoa(r.Images), strconv.Itoa(r.Candidates), errText})
	}
	if err := printTable(rows); err != nil {
		return err
	}

	pterm.Success.Printf("Processed %d, downloaded %d\n", view.Stats.Processed, view.Stats.Downloaded)
	return nil
}

// Watch observes a page until ctx is cancelled.
func (c ScannerCmd) Watch(ctx context.Context, in WatchInput) error {
	pterm.Info.Printf("Watching %s (Ctrl+C to stop)\n", in.URL)
	err := c.svc.Watch(ctx, in.URL)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch %s: %w", in.URL, err)
	}

	view, vErr := c.svc.Surface().MainView(context.WithoutCancel(ctx))
	if vErr == nil {
		pterm.Success.Printf("Stopped. Processed %d, downloaded %d\n", view.Stats.Processed, view.Stats.Downloaded)
	}
	return nil
}

func newScanCommand(r runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scan pages once and download matching images",
		Long:  "Scan the given pages, or the configured pages when none are given, classify every qualifying image and download matches.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.Scan(ctx, ScanInput{URLs: args, Output: output})
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output format (json)")
	return cmd
}

func newWatchCommand(r runner) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <url>",
		Short: "Keep a page under observation and process new images as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.Watch(ctx, WatchInput{URL: args[0]})
			})
		},
	}
}
