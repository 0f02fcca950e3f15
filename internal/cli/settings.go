package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"GhibliScanner/internal/control"
	"GhibliScanner/internal/usecase"
)

var timeNow = time.Now

// SettingsShowInput holds input for printing settings.
type SettingsShowInput struct {
	Output string
	Reveal bool
}

// SettingsSetInput holds changed form fields; nil keeps the stored value.
type SettingsSetInput struct {
	APIKey       *string
	APIBaseURL   *string
	DownloadPath *string
	Threshold    *string
}

// ShowSettings prints the settings form.
func (c ScannerCmd) ShowSettings(ctx context.Context, in SettingsShowInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	view, err := c.svc.Surface().SettingsView(ctx)
	if err != nil {
		return err
	}
	if !in.Reveal {
		view.APIKey = maskKey(view.APIKey)
	}

	if in.Output == "json" {
		switch {
		case math.IsNaN(view.ConfidenceThreshold):
			view.ConfidenceThreshold = usecase.EffectiveThreshold(view.ConfidenceThreshold)
		case math.IsInf(view.ConfidenceThreshold, 0):
			view.ConfidenceThreshold = math.Copysign(math.MaxFloat64, view.ConfidenceThreshold)
		}
		return printJSON(view)
	}

	rows := pterm.TableData{{"Setting", "Value"}}
	rows = append(rows, []string{"API key", orDash(view.APIKey)})
	rows = append(rows, []string{"API base URL", orDash(view.APIBaseURL)})
	rows = append(rows, []string{"Download path", orDash(view.DownloadPath)})
	rows = append(rows, []string{"Confidence threshold", formatThreshold(view.ConfidenceThreshold)})
	if err := printTable(rows); err != nil {
		return err
	}

	if usecase.EffectiveThreshold(view.ConfidenceThreshold) > 0.8 {
		pterm.Warning.Println("Positive answers score 0.8, so a threshold above 0.8 rejects every image")
	}
	return nil
}

// SetSettings saves the form: unchanged fields keep their stored values.
func (c ScannerCmd) SetSettings(ctx context.Context, in SettingsSetInput) error {
	surface := c.svc.Surface()
	current, err := surface.SettingsView(ctx)
	if err != nil {
		return err
	}

	form := control.Form{
		APIKey:       current.APIKey,
		APIBaseURL:   current.APIBaseURL,
		DownloadPath: current.DownloadPath,
		Threshold:    &current.ConfidenceThreshold,
	}
	if in.APIKey != nil {
		form.APIKey = *in.APIKey
	}
	if in.APIBaseURL != nil {
		form.APIBaseURL = *in.APIBaseURL
	}
	if in.DownloadPath != nil {
		form.DownloadPath = *in.DownloadPath
	}
	if in.Threshold != nil {
		form.ConfidenceThreshold = *in.Threshold
		form.Threshold = nil
	}

	saved, err := surface.SaveSettings(ctx, form)
	if err != nil {
		return err
	}

	pterm.Success.Println(surface.SaveLabel(timeNow()))
	if in.Threshold != nil && math.IsNaN(saved.ConfidenceThreshold) {
		pterm.Warning.Printf("Threshold %q is not a number; the default %.1f applies\n",
			form.ConfidenceThreshold, usecase.EffectiveThreshold(saved.ConfidenceThreshold))
	}
	return nil
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func formatThreshold(v float64) string {
	if math.IsNaN(v) || v == 0 {
		return fmt.Sprintf("%s (default %.1f)", strconv.FormatFloat(v, 'g', -1, 64), usecase.EffectiveThreshold(v))
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func newSettingsCommand(r runner) *cobra.Command {
	settings := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the scanner settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			reveal, _ := cmd.Flags().GetBool("reveal")
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.ShowSettings(ctx, SettingsShowInput{Output: output, Reveal: reveal})
			})
		},
	}
	show.Flags().StringP("output", "o", "", "Output format (json)")
	show.Flags().Bool("reveal", false, "Print the API key unmasked")

	set := &cobra.Command{
		Use:   "set",
		Short: "Save settings; omitted flags keep their current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := SettingsSetInput{
				APIKey:       changedString(cmd, "api-key"),
				APIBaseURL:   changedString(cmd, "api-base-url"),
				DownloadPath: changedString(cmd, "download-path"),
				Threshold:    changedString(cmd, "threshold"),
			}
			return r.with(cmd, func(ctx context.Context, c ScannerCmd) error {
				return c.SetSettings(ctx, in)
			})
		},
	}
	set.Flags().String("api-key", "", "Vision API key")
	set.Flags().String("api-base-url", "", "Vision API base URL")
	set.Flags().String("download-path", "", "Directory for downloaded images, relative to the download root")
	set.Flags().String("threshold", "", "Confidence threshold")

	settings.AddCommand(show, set)
	return settings
}

func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
