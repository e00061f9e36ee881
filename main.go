package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/anvil-platform/gateway-console/internal/config"
)

var setupLog = ctrl.Log.WithName("setup")

// rootOptions are shared by every subcommand. cfg is only valid once
// PersistentPreRunE has run.
type rootOptions struct {
	configPath string
	zap        zap.Options
	flags      config.Config
	cfg        config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		zap:   zap.Options{Development: true},
		flags: config.Default(),
	}
	root := &cobra.Command{
		Use:          "gateway-console",
		Short:        "Management API and live dashboard backend for Gateway API resources",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts.zap)))
			cfg, err := loadConfig(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	goflags := flag.NewFlagSet("zap", flag.ExitOnError)
	opts.zap.BindFlags(goflags)
	root.PersistentFlags().AddGoFlagSet(goflags)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file.")
	opts.flags.BindFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand(opts), newCheckCommand(opts))
	return root
}

// loadConfig layers defaults, the file at path, GWCONSOLE_* variables and
// the flags explicitly set on fs, then validates the result.
func loadConfig(path string, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
