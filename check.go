package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/anvil-platform/gateway-console/internal/health"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe every backing system once and print the health report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

// runCheck fails unless the aggregate status is healthy.
func runCheck(ctx context.Context, opts *rootOptions, out io.Writer) error {
	a, err := newMonitor(ctx, opts.cfg, ctrl.Log.WithName("check"))
	if err != nil {
		return err
	}
	defer a.close()

	report := a.monitor.CheckHealth(ctx)
	if err := writeReport(out, report); err != nil {
		return err
	}
	if !report.Healthy() {
		return fmt.Errorf("console is %s", report.Status)
	}
	return nil
}

func writeReport(out io.Writer, report health.Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
