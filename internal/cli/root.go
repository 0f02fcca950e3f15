package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"GhibliScanner/internal/control"
	"GhibliScanner/internal/domain"
)

// Service is what the commands need from a running application.
type Service interface {
	Surface() *control.Surface
	ScanPages(ctx context.Context, urls []string) ([]domain.PageReport, error)
	Watch(ctx context.Context, pageURL string) error
	StatsInterval() time.Duration
	Close() error
}

// Opener starts the application lazily, once per command invocation.
type Opener func(ctx context.Context) (Service, error)

// NewRootCommand assembles the command tree.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "ghibliscanner",
		Short:         "Find and download Studio Ghibli style images on web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	r := runner{open: open}
	root.AddCommand(
		newScanCommand(r),
		newWatchCommand(r),
		newStatusCommand(r),
		newToggleCommand(r, true),
		newToggleCommand(r, false),
		newSettingsCommand(r),
	)
	return root
}

type runner struct {
	open Opener
}

func (r runner) with(cmd *cobra.Command, fn func(ctx context.Context, c ScannerCmd) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer svc.Close()

	return fn(ctx, ScannerCmd{svc: svc})
}

// ScannerCmd handles every scanner operation exposed on the command line.
type ScannerCmd struct {
	svc Service
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	pterm.Println(string(raw))
	return nil
}

func printTable(rows pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func validateOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	return nil
}
