// Package cmd provides the command-line interface for palladin.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--port, --root, ...)
//  2. Environment variables with the PALLADIN_ prefix
//     (PALLADIN_SERVER_PORT, PALLADIN_BUILD_COMMAND, ...)
//  3. A .palladin.yml file in the current directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "palladin",
	Short: "A fast development server for web projects",
	Long: `Palladin serves your project with transform-on-demand, rebuilds on
file changes, and pushes live reloads to connected browsers.

Quick Start:
  palladin dev                    Start the development server
  palladin dev --port 3000        Serve on a different port
  palladin version                Show version information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .palladin.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PALLADIN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".palladin")
	}

	viper.SetEnvPrefix("PALLADIN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; flags and defaults carry the day.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
