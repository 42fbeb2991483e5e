// netcfg - network device configuration as code
//
// Intent files (YAML, one per device) are validated, compiled into vendor
// command plans and pushed to devices over SSH, with per-device reports and
// run artifacts for CI.
//
// Every command that can touch a device takes an explicit mode:
//
//	netcfg validate intents/                      # diagnostics only
//	netcfg generate intents/r1.yaml plans/        # write r1.cfg
//	netcfg deploy intents/r1.yaml plans/r1.cfg --dry-run
//	netcfg deploy intents/r1.yaml plans/r1.cfg --live
//	netcfg run intents/ --mode live --output result.json --junit junit.xml
//
// Credentials come from NETWORK_USERNAME, NETWORK_PASSWORD and
// NETWORK_ENABLE_PASSWORD (or NETCFG_<REF>_* per credentialsRef), or from
// an interactive prompt with --prompt-credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netcfg-io/netcfg/pkg/audit"
	"github.com/netcfg-io/netcfg/pkg/deploy"
	"github.com/netcfg-io/netcfg/pkg/session"
	"github.com/netcfg-io/netcfg/pkg/settings"
	"github.com/netcfg-io/netcfg/pkg/state"
	"github.com/netcfg-io/netcfg/pkg/util"
	"github.com/netcfg-io/netcfg/pkg/version"
)

var (
	// Global option flags
	verbose      bool
	logFormat    string
	jsonOutput   bool
	settingsFile string

	// Global state
	userSettings *settings.Settings
	auditLogger  *audit.FileLogger
)

// errNotClean is returned when a command completed but its outcome was not
// clean; main exits non-zero without printing it again.
var errNotClean = errors.New("run did not complete cleanly")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if auditLogger != nil {
		auditLogger.Close()
	}
	if err != nil {
		if !errors.Is(err, errNotClean) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "netcfg",
	Short:             "Network device configuration as code",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `netcfg validates device intent files, compiles them into vendor command
plans and deploys the plans to devices.

Deployments never default to live: pass --dry-run or --live to deploy, and
--mode to run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries reports and plans
		util.SetLogOutput(cmd.ErrOrStderr())
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if err := util.SetLogFormat(logFormat); err != nil {
			return err
		}

		path := settingsFile
		if path == "" {
			path = settings.DefaultSettingsPath()
		}
		var err error
		userSettings, err = settings.LoadFrom(path)
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if isSettingsOrMeta(cmd) {
			return nil
		}

		auditLogger, err = audit.NewFileLogger(userSettings.GetAuditLog(), audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Settings file (default ~/.netcfg/settings.json)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "intent", Title: "Intent Operations:"},
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{validateCmd, generateCmd} {
		cmd.GroupID = "intent"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{deployCmd, runCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{auditCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("netcfg " + version.Info())
	},
}

// isSettingsOrMeta reports whether cmd needs no audit log
func isSettingsOrMeta(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "validate", "generate":
			return true
		}
	}
	return false
}

// deviceFlags are shared by deploy and run
type deviceFlags struct {
	connectTimeout    time.Duration
	commandTimeout    time.Duration
	maxAttempts       int
	rejectPolicy      string
	verify            bool
	skipUnchanged     bool
	knownHosts        string
	promptCredentials bool
}

func addDeviceFlags(cmd *cobra.Command, f *deviceFlags) {
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 0, "Connect and login timeout (default 15s)")
	cmd.Flags().DurationVar(&f.commandTimeout, "command-timeout", 0, "Per-command timeout (default 30s)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Connection attempts per device (default 3)")
	cmd.Flags().StringVar(&f.rejectPolicy, "on-reject", string(deploy.RejectContinue), "After a rejected command: continue or abort")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Re-read the running configuration after a live apply")
	cmd.Flags().BoolVar(&f.skipUnchanged, "skip-unchanged", false, "Skip devices whose plan was already applied (requires redis_addr)")
	cmd.Flags().StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file for host key checking")
	cmd.Flags().BoolVar(&f.promptCredentials, "prompt-credentials", false, "Prompt for credentials instead of reading the environment")
}

// newDeployer builds a Deployer from settings overridden by flags. The
// returned cleanup closes the state store, if one was opened.
func newDeployer(ctx context.Context, f *deviceFlags) (*deploy.Deployer, func(), error) {
	policy := deploy.RejectPolicy(f.rejectPolicy)
	if policy != deploy.RejectContinue && policy != deploy.RejectAbort {
		return nil, nil, fmt.Errorf("invalid --on-reject %q (want continue or abort)", f.rejectPolicy)
	}

	opts := deploy.Options{
		ConnectTimeout: pick(f.connectTimeout, userSettings.GetConnectTimeout()),
		CommandTimeout: pick(f.commandTimeout, userSettings.GetCommandTimeout()),
		MaxAttempts:    pick(f.maxAttempts, userSettings.MaxAttempts),
		RejectPolicy:   policy,
		Verify:         f.verify,
		SkipUnchanged:  f.skipUnchanged,
	}
	dialer := &session.SSHDialer{KnownHostsFile: pick(f.knownHosts, userSettings.KnownHostsFile)}
	d := deploy.New(dialer, opts)
	if auditLogger != nil {
		d.Audit = auditLogger
	}

	cleanup := func() {}
	if userSettings.RedisAddr != "" {
		store := state.NewRedisStore(userSettings.RedisAddr, userSettings.RedisDB)
		if err := store.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connecting to state store: %w", err)
		}
		d.Locker = store
		d.Hashes = store
		cleanup = func() { store.Close() }
	} else if f.skipUnchanged {
		return nil, nil, fmt.Errorf("--skip-unchanged needs a state store: netcfg settings set redis_addr <host:port>")
	}
	return d, cleanup, nil
}

// pick returns flag unless it is the zero value
func pick[T comparable](flag, fallback T) T {
	var zero T
	if flag != zero {
		return flag
	}
	return fallback
}
