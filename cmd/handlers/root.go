/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"painfinder/internal/config"
	"painfinder/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all pipeline stages attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "painfinder",
		Short: "Painfinder mines community posts for recurring product pain",
		Long: `Painfinder runs a staged pipeline over collected Reddit and Hacker News
content: filter posts for pain signal, extract structured pain events,
embed and cluster them, align clusters across sources, map clusters to
product opportunities, score viability, and emit a decision shortlist.

Each stage is its own subcommand and can be run independently; 'pipeline'
chains them all.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.painfinder.yaml)")

	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewStatsCmd())
	rootCmd.AddCommand(NewFilterCmd())
	rootCmd.AddCommand(NewExtractCmd())
	rootCmd.AddCommand(NewEmbedCmd())
	rootCmd.AddCommand(NewClusterCmd())
	rootCmd.AddCommand(NewAlignCmd())
	rootCmd.AddCommand(NewMapCmd())
	rootCmd.AddCommand(NewScoreCmd())
	rootCmd.AddCommand(NewShortlistCmd())
	rootCmd.AddCommand(NewPipelineCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewDedupeCmd())
	rootCmd.AddCommand(NewArchiveCmd())
	rootCmd.AddCommand(NewSimilarCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init()
}
