package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/morning-report/internal/market"
)

var runDate string

// runCmd generates a single report.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the morning report for one day",
	Long: `Generate the morning report for --date (default: today in REPORT_TZ) and write
morning_report_YYYY_MM_DD.txt, .csv and .xlsx into OUT_DIR.`,
	RunE: runReport,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "report day as YYYY-MM-DD")
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	day := market.Truncate(time.Now().In(a.cfg.ReportTZ))
	if runDate != "" {
		if day, err = market.ParseDay(runDate); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ReportTimeout)
	defer cancel()

	r, err := a.service.Generate(ctx, day)
	if err != nil {
		a.logger.Error("morning report failed", zap.Error(err))
		return err
	}

	fmt.Fprintln(os.Stdout, r.Comment)
	for _, f := range r.Files {
		fmt.Fprintln(os.Stdout, f)
	}
	return nil
}
