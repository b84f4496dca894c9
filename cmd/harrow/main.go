package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jbweber/harrow/internal/config"
	"github.com/jbweber/harrow/internal/fault"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	v          = config.New()
	configFile string
	app        *App
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if app != nil {
		if werr := app.Close(); werr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(fault.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "harrow",
	Short: "Harrow - libvirt lifecycle plugin",
	Long: `Harrow drives the lifecycle of libvirt domains, networks, storage pools,
volumes and cloud-init ISO images declared in a blueprint.

Every operation reads and writes the instance state under the state
directory, so workflows may be interrupted and re-run. Failures worth
retrying exit with status 75.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "init" {
			return nil
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		app, err = NewApp(cfg)
		return err
	},
}

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", "", "config file (default /etc/harrow/harrow.yaml)")
	fs.String("uri", "", "libvirt URI for nodes without libvirt_auth")
	fs.String("socket", "", "local libvirt socket for qemu:///system")
	fs.Duration("timeout", 0, "hypervisor dial timeout")
	fs.String("state-dir", "", "instance state directory")
	fs.String("backup-dir", "", "base directory of persistent backups")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("metrics-file", "", "write metrics in text format to this file on exit")
	bindFlags(v, fs)

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(testConnCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"uri":          "uri",
	"socket":       "socket",
	"timeout":      "timeout",
	"state-dir":    "state_dir",
	"backup-dir":   "backup_dir",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics.file",
}

// bindFlags lets flags that were set override config values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "harrow %s (commit: %s)\n", version, commit)
	},
}
