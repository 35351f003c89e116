package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hxpage",
	Short: "hxpage - widget page server",
	Long: `hxpage serves server-rendered pages assembled from independently
fetched widgets. Widgets on one level of the page fetch in parallel, their
fragments are cached by input, and the result is composed into a layout.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("hxpage version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (yaml, json or toml); HXPAGE_* environment variables override it")
}
