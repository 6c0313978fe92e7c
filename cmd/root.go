package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/filescan/cmd/scan"
	"github.com/scan-io-git/filescan/cmd/version"
	"github.com/scan-io-git/filescan/pkg/shared/config"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "filescan [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Filescan examines untrusted files and archives under hard resource bounds.",
		Long: `Filescan is the adversarial-input-resistant scanning core of a file security
	scanner: it canonicalizes untrusted paths, pre-checks batch resource cost,
	extracts archives under zip-bomb defenses, and matches signature patterns
	with ReDoS-safe regex handling.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

func Execute() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("initializing config file function is crashed - %v \n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	scan.Init(AppConfig)
	version.Init(AppConfig)
}
