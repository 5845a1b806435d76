// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd defines the kplaunch command line surface.
package cmd

import (
	"kpg-launcher/pkg/logging"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kplaunch",
	Short: "Launches keyphrase-generation pipeline jobs locally or on a Slurm cluster.",
	Long: `kplaunch assembles the command line for the external keyphrase-generation
pipeline, runs it directly ('run'), submits it as a Slurm batch job
('submit'), or builds the pipeline's container runtime image ('image').`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
