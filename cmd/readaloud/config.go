package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/config"
	"github.com/jackzampolin/readaloud/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Long: `Write the default configuration file.

The file goes to ~/.readaloud/config.yaml unless a path is given.
An existing file is kept unless --force is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		path := h.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		} else if err := h.EnsureExists(); err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "List every configuration key with its default",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(config.DefaultEntries())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file and
READALOUD_ environment variables. Literal API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
				path = h.ConfigPath()
			}
		}
		mgr, err := config.NewManager(path)
		if err != nil {
			return err
		}
		cfg := *mgr.Get()
		cfg.OCR.APIKey = maskKey(cfg.OCR.APIKey)
		cfg.TTS.APIKey = maskKey(cfg.TTS.APIKey)
		if used := mgr.ConfigFile(); used != "" {
			fmt.Fprintf(os.Stderr, "# %s\n", used)
		}
		return api.Output(cfg)
	},
}

// maskKey hides literal keys but keeps ${ENV_VAR} references readable.
func maskKey(key string) string {
	if key == "" || strings.HasPrefix(key, "${") {
		return key
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configDefaultsCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
