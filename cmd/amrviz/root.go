package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/amrviz/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "amrviz",
	Short: "amrviz solves obstacle problems with adaptive mesh refinement",
	Long: `amrviz solves the Sphere and Spiral obstacle problems on adaptively
refined triangle meshes, writes one VTK file per iteration and serves the
files to a browser viewer.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.amrviz.yaml)")
	pf.String("storage", "./data", "Directory holding the solution files")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("session-store", config.StoreMemory, "Session store: memory, file or redis")
	pf.String("session-dir", "~/.amrviz/sessions", "Directory of the file session store")
	pf.String("redis-url", "redis://localhost:6379/0", "Redis URL of the redis session store")
	pf.String("solver", "native", "Solver to run: native or a name from the solvers file")
	pf.String("solvers-file", "solvers.yaml", "YAML or JSON file registering external solvers")
}

// loadConfig resolves the settings of cmd: flags, then AMRVIZ_* variables,
// then the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return config.Config{}, bindErr
	}
	return config.Load(v)
}
