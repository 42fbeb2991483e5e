package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/audit"
	"github.com/netcfg-io/netcfg/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the deployment audit log",
	Long: `View the audit log. Every device deployment, including devices skipped
for validation failures, is recorded with:
  - Timestamp and run ID
  - User who ran the deployment
  - Device and management address
  - Mode, outcome and final stage
  - Plan hash and command counts

Examples:
  netcfg audit list --device r1
  netcfg audit list --last 24h
  netcfg audit list --run 1f0c... --json`,
}

var (
	auditDevice   string
	auditUser     string
	auditRun      string
	auditOutcome  string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Device:      auditDevice,
			User:        auditUser,
			RunID:       auditRun,
			Outcome:     auditOutcome,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			d, err := parseLast(auditLast)
			if err != nil {
				return err
			}
			filter.StartTime = time.Now().Add(-d)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "DEVICE", "MODE", "OUTCOME", "STAGE", "SENT", "RUN")
		for _, e := range events {
			run := e.RunID
			if len(run) > 8 {
				run = run[:8]
			}
			t.Rowf(e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.User, e.Device, e.Mode,
				cli.Outcome(e.Outcome), e.FinalStage, e.Commands, run)
		}
		t.Flush()
		return nil
	},
}

// parseLast accepts Go durations plus a day suffix ("7d")
func parseLast(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}

func init() {
	auditListCmd.Flags().StringVar(&auditDevice, "device", "", "Filter by device")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditRun, "run", "", "Filter by run ID")
	auditListCmd.Flags().StringVar(&auditOutcome, "outcome", "", "Filter by outcome (e.g. PartialFailure)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed deployments")
	auditListCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")

	auditCmd.AddCommand(auditListCmd)
}
