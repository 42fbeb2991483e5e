package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/cli"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/pipeline"
	"github.com/netcfg-io/netcfg/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [intent-path]",
	Short: "Validate intent files",
	Long: `Validate one intent file or a directory of them. Every problem is
reported with its field path; nothing is sent to any device.

Exits non-zero if any intent has an error.

Examples:
  netcfg validate intents/r1.yaml
  netcfg validate intents/ --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intents, err := loadIntents(args)
		if err != nil {
			return err
		}
		keys, diags := validateBatch(intents)

		if jsonOutput {
			type entry struct {
				Key         string              `json:"key"`
				Source      string              `json:"source,omitempty"`
				Valid       bool                `json:"valid"`
				Diagnostics []intent.Diagnostic `json:"diagnostics"`
			}
			out := make([]entry, len(keys))
			for i, k := range keys {
				out[i] = entry{Key: k, Source: intents[i].Source, Valid: !intent.HasErrors(diags[i]), Diagnostics: diags[i]}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
		} else {
			printDiagnostics(keys, diags)
		}

		for _, d := range diags {
			if intent.HasErrors(d) {
				return errNotClean
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
}

// loadIntents reads the path argument, falling back to the intent_dir setting
func loadIntents(args []string) ([]*intent.DeviceIntent, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path = userSettings.IntentDir
	}
	if path == "" {
		return nil, fmt.Errorf("intent path required (or: netcfg settings set intent_dir <dir>)")
	}
	intents, err := intent.Load(path)
	if err != nil {
		return nil, err
	}
	if len(intents) == 0 {
		return nil, fmt.Errorf("no intent files (*.yaml, *.yml) in %s", path)
	}
	return intents, nil
}

// validateBatch validates every intent, including cross-intent checks
func validateBatch(intents []*intent.DeviceIntent) ([]string, [][]intent.Diagnostic) {
	diags := validate.ValidateAll(intents)
	for i, d := range validate.DuplicateHostnames(intents) {
		diags[i] = append(diags[i], d)
	}
	return pipeline.Keys(intents), diags
}

func printDiagnostics(keys []string, diags [][]intent.Diagnostic) {
	t := cli.NewTable("INTENT", "SEVERITY", "CODE", "PATH", "MESSAGE")
	valid := 0
	for i, key := range keys {
		if !intent.HasErrors(diags[i]) {
			valid++
		}
		for _, d := range diags[i] {
			t.Row(key, cli.Severity(string(d.Severity)), string(d.Code), d.Path, d.Message)
		}
	}
	t.Flush()

	summary := fmt.Sprintf("%d of %d intent(s) valid", valid, len(keys))
	if valid == len(keys) {
		fmt.Println(cli.Green(summary))
	} else {
		fmt.Println(cli.Red(summary))
	}
}
