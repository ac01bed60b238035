package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/readaloud/internal/api"
	"github.com/jackzampolin/readaloud/internal/home"
	"github.com/jackzampolin/readaloud/version"
)

// cliSessionFile remembers the server session used by `readaloud api`.
const cliSessionFile = "cli_session"

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	sessionID    string
)

var rootCmd = &cobra.Command{
	Use:   "readaloud",
	Short: "Extract text from PDFs and images, then turn it into speech",
	Long: `readaloud is a local web app for reading documents aloud.

It has two panels:
  - OCR: send PDFs or images (URLs or uploads) to Mistral OCR, review and
    edit the extracted markdown, download it or save it to a folder
  - Text to Audio: convert OCR results, typed text, or a text file to
    speech with one of six OpenAI voices, play it, download it or save it

Start the page with 'readaloud serve'. Every panel action is also available
from the command line under 'readaloud api'.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.readaloud/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "readaloud home directory (default: ~/.readaloud)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&sessionID, "session", "", "server session ID for api commands (default: the last one used)",
	)

	// Set output format and session before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
		api.SetSessionID(sessionID)
		if h, err := home.New(homeDir); err == nil {
			api.SetSessionFile(filepath.Join(h.Path(), cliSessionFile))
		}
	}

	rootCmd.AddCommand(versionCmd)
}
