package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/cli"
	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/deploy"
	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/session"
	"github.com/netcfg-io/netcfg/pkg/validate"
)

var (
	deployDryRun bool
	deployLive   bool
	deployOutput string
	deployDevice deviceFlags
)

var deployCmd = &cobra.Command{
	Use:   "deploy <intent-path> <plan-path> (--dry-run | --live)",
	Short: "Deploy one command plan to one device",
	Long: `Deploy a plan written by 'netcfg generate' to the device described by
its intent file. The intent supplies the management address, device type and
credentialsRef; the plan must have been compiled for the same hostname and
device type.

--dry-run connects, logs in and reads the running configuration but never
sends a configuration command. --live applies and saves.

Examples:
  netcfg deploy intents/r1.yaml plans/r1.cfg --dry-run
  netcfg deploy intents/r1.yaml plans/r1.cfg --live --output r1.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := deploy.DryRun
		if deployLive {
			mode = deploy.Live
		}

		doc, err := intent.LoadFile(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading plan: %w", err)
		}
		plan, err := compiler.ParsePlan(data)
		if err != nil {
			return fmt.Errorf("reading plan %s: %w", args[1], err)
		}

		d, cleanup, err := newDeployer(cmd.Context(), &deployDevice)
		if err != nil {
			return err
		}
		defer cleanup()

		var report *deploy.Report
		if diags := validate.Validate(doc); intent.HasErrors(diags) {
			printDiagnostics([]string{doc.Name()}, [][]intent.Diagnostic{diags})
			report = deploy.NewSkippedReport(doc.Hostname, doc.ManagementAddress, mode,
				deploy.SkippedValidationFailed, intent.AsError(diags))
			d.Record(report)
		} else if err := planMatches(plan, doc); err != nil {
			return err
		} else {
			resolver, err := credentialResolver(deployDevice.promptCredentials)
			if err != nil {
				return err
			}
			creds, err := resolver.Resolve(doc)
			if err != nil {
				return err
			}
			ep := session.Endpoint{Hostname: doc.Hostname, Address: doc.ManagementAddress, DeviceType: doc.DeviceType}
			report = d.Deploy(cmd.Context(), plan, ep, creds, mode)
		}

		printReport(report)
		if deployOutput != "" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(deployOutput, append(data, '\n'), 0644); err != nil {
				return err
			}
		}
		if !report.Outcome.CleanFor(mode) {
			return errNotClean
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Preview without changing the device")
	deployCmd.Flags().BoolVar(&deployLive, "live", false, "Apply and save the configuration")
	deployCmd.MarkFlagsMutuallyExclusive("dry-run", "live")
	deployCmd.MarkFlagsOneRequired("dry-run", "live")
	deployCmd.Flags().StringVarP(&deployOutput, "output", "o", "", "Write the report as JSON")
	addDeviceFlags(deployCmd, &deployDevice)
}

// planMatches checks that plan was compiled for doc
func planMatches(plan *compiler.CommandPlan, doc *intent.DeviceIntent) error {
	if plan.Hostname() != doc.Hostname {
		return fmt.Errorf("plan is for %q but intent is for %q", plan.Hostname(), doc.Hostname)
	}
	dl, ok := dialect.Lookup(doc.DeviceType)
	if !ok || dl.Name != plan.DeviceType() {
		return fmt.Errorf("plan is for device type %q but intent declares %q", plan.DeviceType(), doc.DeviceType)
	}
	return nil
}

// printReport prints one device report
func printReport(r *deploy.Report) {
	fmt.Printf("%s %s (%s): %s", cli.Bold(r.Hostname), r.ManagementAddress, r.Mode, cli.Outcome(string(r.Outcome)))
	if r.FailedStage != "" {
		fmt.Printf(" at %s", r.FailedStage)
	}
	fmt.Println()

	t := cli.NewTable("COMMAND", "SENT", "ACCEPTED", "NOTE").WithPrefix("  ")
	for _, c := range r.Commands {
		accepted := "-"
		if c.Sent {
			accepted = cli.Green("yes")
			if !c.Accepted {
				accepted = cli.Red("no")
			}
		}
		t.Rowf(c.Command, c.Sent, accepted, c.Note)
	}
	t.Flush()

	for _, w := range r.Warnings {
		fmt.Println("  " + cli.Yellow("warning: ") + w)
	}
	if r.Error != "" {
		fmt.Println("  " + cli.Red("error: ") + r.Error)
	}
	if r.Mode == deploy.Live && r.Outcome == deploy.Success {
		switch {
		case r.Unchanged:
			fmt.Println("  " + cli.Dim("plan already applied, device not contacted"))
		case r.Verified:
			fmt.Println("  " + cli.Green("saved and verified"))
		case r.SavedConfig:
			fmt.Println("  " + cli.Green("saved"))
		}
	}
}
