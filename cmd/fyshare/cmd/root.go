package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/fyshare/fyshare/internal/config"
)

const defaultConfigFile = "fyshare.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fyshare",
	Short: "FyShare shares a directory over the local network",
	Long: `FyShare serves a directory to browsers on the local network behind a
six digit passcode that rotates on a timer and under attack.`,
	SilenceUsage: true,
}

// Execute runs the root command. Protected memory is wiped before exit.
func Execute() {
	err := rootCmd.Execute()
	memguard.Purge()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigFile, "Path to the configuration file")
}

// loadConfig reads --config. A missing file is only an error when the flag
// was given explicitly; otherwise the defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
