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
	"kpg-launcher/pkg/jobconfig"
	"kpg-launcher/pkg/logging"
	"kpg-launcher/pkg/orchestrator/slurm"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	submitJobFile      string
	submitOutputScript string
	submitJobName      string
	submitPartition    string
	submitTime         string
	submitGPUs         int
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitJobFile, "job", "j", "", "Path to the YAML job file describing the submission. Required.")
	submitCmd.Flags().StringVarP(&submitOutputScript, "output-script", "o", "", "Path to save the generated batch script instead of submitting it.")
	submitCmd.Flags().StringVar(&submitJobName, "job-name", "", "Override the job name from the job file.")
	submitCmd.Flags().StringVarP(&submitPartition, "partition", "p", "", "Override the partition from the job file.")
	submitCmd.Flags().StringVarP(&submitTime, "time", "t", "", "Override the wall-clock limit (D-HH:MM:SS) from the job file.")
	submitCmd.Flags().IntVarP(&submitGPUs, "gpus", "g", -1, "Override the accelerator count from the job file.")

	_ = submitCmd.MarkFlagRequired("job")
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submits the pipeline as a Slurm batch job.",
	Long: `The 'submit' command wraps the assembled pipeline command line in a batch
script carrying the job file's resource directives and hands it to sbatch.
With --output-script the script is written to a file for inspection instead
of being submitted.`,
	Run:          runSubmitCmd,
	SilenceUsage: true,
}

func runSubmitCmd(cmd *cobra.Command, args []string) {
	jf, err := jobconfig.Load(afero.NewOsFs(), submitJobFile)
	if err != nil {
		logging.Fatal("Failed to load job file: %v", err)
	}

	if submitJobName != "" {
		jf.Job.Name = submitJobName
	}
	if submitPartition != "" {
		jf.Job.Partition = submitPartition
	}
	if submitTime != "" {
		jf.Job.Time = submitTime
	}
	if submitGPUs >= 0 {
		jf.Job.GPUs = submitGPUs
	}

	job := jf.JobDefinition()
	job.OutputScript = submitOutputScript

	var orch *slurm.SlurmOrchestrator
	if submitOutputScript != "" {
		// Saving the script needs no scheduler on this host.
		orch = &slurm.SlurmOrchestrator{}
	} else {
		orch, err = slurm.NewSlurmOrchestrator()
		if err != nil {
			logging.Fatal("Failed to create Slurm orchestrator: %v", err)
		}
	}

	jobID, err := orch.SubmitJob(job)
	if err != nil {
		logging.Fatal("kplaunch submit failed: %v", err)
	}
	if jobID != "" {
		logging.Info("Job %s submitted; the scheduler now owns placement and limits.", jobID)
	}
}
