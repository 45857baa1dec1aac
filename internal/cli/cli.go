//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-starload.
package cli

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/config"
	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	dataDir    string
	logLevel   string
	logFormat  string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-starload",
		Short: "Olist e-commerce extracts to a PostgreSQL star schema",
		Long: `pgedge-starload reads the nine Olist e-commerce CSV extracts, cleans
and normalizes them, builds a star schema (date, geolocation, customer,
seller and product dimensions around an order line item fact table) and
replaces the persisted schema in PostgreSQL within a single transaction.

A failed load leaves the previously committed schema untouched.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-starload.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"directory holding the CSV extracts (default: ./data)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (pretty, json)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogFormat != "json",
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the source extracts",
	Long: `List every CSV extract the pipeline requires, with its default file
name and the columns the cleaners rely on. File names can be overridden
per source in the config file's 'sources' section.`,
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Source", "File", "Columns"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, src := range extract.Catalog {
			file := src.File
			if override, ok := cfg.Sources[src.Name]; ok {
				file = override
			}
			table.Append([]string{src.Name, file, strings.Join(src.Columns, ", ")})
		}
		table.Render()
	},
}
