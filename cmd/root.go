package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fsbench/internal/banner"
	"fsbench/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fsbench",
	Short: "fsbench - file-system operation benchmark",
	Long: `
fsbench drives repeated copy/move/read/write/delete operations against a
shared storage target from many concurrent workers, times every operation
and merges the results into one dataset for analysis.

Typical flow:
1. fsbench seed     create the per-worker source pools
2. fsbench run      launch the workers and merge their records
3. fsbench analyze  export statistics as CSV`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		console := true
		if cmd.Name() == "run" {
			if tui, _ := cmd.Flags().GetBool("tui"); tui {
				console = false
			}
		}
		return logger.Init(viper.GetString("log_level"), viper.GetString("log_file"), console)
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fsbench.yaml)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Also write JSON logs to this file")
	pf.String("data-dir", defaultDataDir(), "Directory holding the run index")
	pf.String("metrics-addr", "", "Serve /metrics and /healthz on this address during runs (e.g. :9090)")

	viper.BindPFlag("log_level", pf.Lookup("log-level"))
	viper.BindPFlag("log_file", pf.Lookup("log-file"))
	viper.BindPFlag("data_dir", pf.Lookup("data-dir"))
	viper.BindPFlag("metrics_addr", pf.Lookup("metrics-addr"))

	rootCmd.AddCommand(runCmd, workerCmd, mergeCmd, analyzeCmd, seedCmd, monitorCmd, historyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".fsbench")
		}
	}
	viper.SetEnvPrefix("FSBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fsbench"
	}
	return filepath.Join(home, ".fsbench")
}
