// Package cmd implements the rawshade command-line tool.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rawshade",
	Short: "Dispatch the RAW shading pipeline against a tile",
	Long: `rawshade drives the RAW photo shading pipeline's compute kernel
from the command line, one tile at a time, for smoke-testing a build
against real GPU hardware without a host editor application.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rawshade.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("rawshade")
	}

	viper.SetEnvPrefix("RAWSHADE")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absent config file is not an error; flags/env still apply

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
