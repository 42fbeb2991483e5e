package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/cli"
	"github.com/netcfg-io/netcfg/pkg/deploy"
	"github.com/netcfg-io/netcfg/pkg/pipeline"
)

var (
	runMode        string
	runConcurrency int
	runOutput      string
	runMarkdown    string
	runJUnit       string
	runPlanDir     string
	runDevice      deviceFlags
)

var runCmd = &cobra.Command{
	Use:   "run [intent-dir]",
	Short: "Validate, compile and deploy a directory of intents",
	Long: `Run the whole pipeline over a directory of intents: validate every
intent, compile the valid ones, then deploy with bounded parallelism. One
failing device never stops the others.

The exit status is zero only when every intent is valid and every device
reached the clean outcome for the mode (Success for live, SkippedDryRun for
dry-run).

Examples:
  netcfg run intents/
  netcfg run intents/ --mode live --concurrency 10
  netcfg run intents/ --output result.json --markdown summary.md --junit junit.xml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := deploy.ParseMode(runMode)
		if err != nil {
			return err
		}
		intents, err := loadIntents(args)
		if err != nil {
			return err
		}

		resolver, err := credentialResolver(runDevice.promptCredentials)
		if err != nil {
			return err
		}
		d, cleanup, err := newDeployer(cmd.Context(), &runDevice)
		if err != nil {
			return err
		}
		defer cleanup()

		c := &pipeline.Coordinator{
			Deployer:    d,
			Credentials: resolver,
			Concurrency: pick(runConcurrency, userSettings.Concurrency),
		}
		res := c.Run(cmd.Context(), intents, mode)

		if err := writeArtifacts(res); err != nil {
			return err
		}
		printResult(res)
		if res.Overall != deploy.Success {
			return errNotClean
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", string(deploy.DryRun), "Deployment mode: dry-run or live")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "j", 0, fmt.Sprintf("Devices deployed at once (default %d)", pipeline.DefaultConcurrency))
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the run result as JSON")
	runCmd.Flags().StringVar(&runMarkdown, "markdown", "", "Write a Markdown summary")
	runCmd.Flags().StringVar(&runJUnit, "junit", "", "Write a JUnit XML report")
	runCmd.Flags().StringVar(&runPlanDir, "plans", "", "Write each compiled plan to this directory")
	addDeviceFlags(runCmd, &runDevice)
}

func writeArtifacts(res *pipeline.Result) error {
	if runOutput != "" {
		if err := res.WriteJSON(runOutput); err != nil {
			return fmt.Errorf("writing %s: %w", runOutput, err)
		}
	}
	if runMarkdown != "" {
		if err := res.WriteMarkdown(runMarkdown); err != nil {
			return fmt.Errorf("writing %s: %w", runMarkdown, err)
		}
	}
	if runJUnit != "" {
		if err := res.WriteJUnit(runJUnit); err != nil {
			return fmt.Errorf("writing %s: %w", runJUnit, err)
		}
	}
	if runPlanDir != "" {
		if err := os.MkdirAll(runPlanDir, 0755); err != nil {
			return err
		}
		for key, plan := range res.Plans {
			if err := os.WriteFile(filepath.Join(runPlanDir, key+PlanExt), []byte(plan.Text()), 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

func printResult(res *pipeline.Result) {
	t := cli.NewTable("DEVICE", "ADDRESS", "OUTCOME", "STAGE", "SENT", "REJECTED", "ATTEMPTS")
	for _, key := range res.Keys {
		r := res.Reports[key]
		t.Rowf(key, r.ManagementAddress, cli.Outcome(string(r.Outcome)), r.FinalStage,
			r.SentCount(), r.Rejected(), r.Attempts)
	}
	t.Flush()

	counts := res.Counts()
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	fmt.Println()
	for _, o := range outcomes {
		fmt.Printf("  %s %d\n", cli.DotPad(o, 26), counts[deploy.Outcome(o)])
	}
	fmt.Printf("\nRun %s (%s): %s in %dms\n", res.RunID, res.Mode, cli.Outcome(string(res.Overall)), res.DurationMs)
}
