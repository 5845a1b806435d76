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

package cmd

import (
	"os"

	"kpg-launcher/pkg/jobconfig"
	"kpg-launcher/pkg/launcher"
	"kpg-launcher/pkg/logging"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var runJobFile string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobFile, "job", "j", "", "Path to the YAML job file describing the pipeline invocation. Required.")
	_ = runCmd.MarkFlagRequired("job")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the pipeline synchronously on this host.",
	Long: `The 'run' command assembles the pipeline command line from the job file and
executes it directly, without a scheduler. It blocks until the pipeline
terminates and exits with the pipeline's own status.`,
	Run:          runRunCmd,
	SilenceUsage: true,
}

func runRunCmd(cmd *cobra.Command, args []string) {
	jf, err := jobconfig.Load(afero.NewOsFs(), runJobFile)
	if err != nil {
		logging.Fatal("Failed to load job file: %v", err)
	}

	l := launcher.Launcher{
		Interpreter: jf.Pipeline.Interpreter,
		Entrypoint:  jf.Pipeline.Entrypoint,
	}

	err = l.Launch(jf.LaunchRequest())
	if err != nil {
		logging.Error("Pipeline run failed: %v", err)
	}
	os.Exit(launcher.ExitCode(err))
}
