package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/cli"
	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/util"
)

// PlanExt is the file extension of written command plans
const PlanExt = ".cfg"

var generateCmd = &cobra.Command{
	Use:   "generate <intent-path> [output-path]",
	Short: "Compile intents into command plans",
	Long: `Compile valid intents into vendor command plans. Invalid intents are
reported and skipped.

With no output path a single plan is printed to stdout. An output path that
is a directory (or ends in /) receives one <hostname>.cfg per device;
otherwise a single plan is written to that file.

Examples:
  netcfg generate intents/r1.yaml
  netcfg generate intents/r1.yaml r1.cfg
  netcfg generate intents/ plans/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		intents, err := loadIntents(args[:1])
		if err != nil {
			return err
		}
		keys, diags := validateBatch(intents)

		var plans []*compiler.CommandPlan
		failed := 0
		for i, doc := range intents {
			if intent.HasErrors(diags[i]) {
				printDiagnostics([]string{keys[i]}, diags[i:i+1])
				failed++
				continue
			}
			plan, err := compiler.Compile(doc)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", keys[i], err)
				failed++
				continue
			}
			plans = append(plans, plan)
		}

		out := ""
		if len(args) > 1 {
			out = args[1]
		}
		if err := writePlans(plans, out); err != nil {
			return err
		}
		if failed > 0 {
			fmt.Fprintln(os.Stderr, cli.Red(fmt.Sprintf("%d intent(s) not compiled", failed)))
			return errNotClean
		}
		return nil
	},
}

// writePlans writes plans to stdout, a single file or a directory
func writePlans(plans []*compiler.CommandPlan, out string) error {
	if out == "" {
		if len(plans) > 1 {
			return fmt.Errorf("%d plans compiled: give an output directory", len(plans))
		}
		for _, p := range plans {
			fmt.Print(p.Text())
		}
		return nil
	}

	info, err := os.Stat(out)
	isDir := strings.HasSuffix(out, "/") || (err == nil && info.IsDir()) || len(plans) > 1
	if !isDir {
		for _, p := range plans {
			if err := os.WriteFile(out, []byte(p.Text()), 0644); err != nil {
				return err
			}
			fmt.Printf("%s %s (%d lines, %s)\n", cli.Green("wrote"), out, p.Len(), p.Hash())
		}
		return nil
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	for _, p := range plans {
		path := filepath.Join(out, p.Hostname()+PlanExt)
		if err := os.WriteFile(path, []byte(p.Text()), 0644); err != nil {
			return err
		}
		util.WithDevice(p.Hostname()).Debugf("plan %s written to %s", p.Hash(), path)
		fmt.Printf("%s %s (%d lines, %s)\n", cli.Green("wrote"), path, p.Len(), p.Hash())
	}
	return nil
}
