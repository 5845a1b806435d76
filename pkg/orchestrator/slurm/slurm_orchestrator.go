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

package slurm

import (
	"fmt"
	"os"
	"strings"

	"kpg-launcher/pkg/batchscript"
	"kpg-launcher/pkg/launcher"
	"kpg-launcher/pkg/logging"
	"kpg-launcher/pkg/orchestrator"
	"kpg-launcher/pkg/shell"
)

// SlurmOrchestrator implements the Orchestrator interface for Slurm
// clusters. Submission goes through the sbatch binary; everything beyond
// handing over the batch script (placement, limits, preemption) is owned by
// the scheduler.
type SlurmOrchestrator struct {
	// SbatchPath is the submission binary, "sbatch" unless overridden.
	SbatchPath string
}

// NewSlurmOrchestrator creates an orchestrator after checking that sbatch
// is reachable and that we are not already inside a Slurm allocation.
func NewSlurmOrchestrator() (*SlurmOrchestrator, error) {
	path, ok := shell.LookPath("sbatch")
	if !ok {
		return nil, fmt.Errorf("sbatch not found on PATH; is this host a Slurm submit node?")
	}
	if jobID, inside := os.LookupEnv("SLURM_JOB_ID"); inside {
		return nil, fmt.Errorf("already inside Slurm job %s; nested submission is not supported", jobID)
	}
	return &SlurmOrchestrator{SbatchPath: path}, nil
}

// SubmitJob generates the batch script for the job and submits it with
// sbatch, or saves it to job.OutputScript when that path is set.
func (s *SlurmOrchestrator) SubmitJob(job orchestrator.JobDefinition) (string, error) {
	if err := job.Request.Validate(); err != nil {
		return "", err
	}

	l := launcher.Launcher{Interpreter: job.Interpreter, Entrypoint: job.Entrypoint}
	script, err := batchscript.Generate(batchscript.ScriptOptions{
		Resources: job.Resources,
		EnvSetup:  job.EnvSetup,
		Command:   l.CommandString(job.Request),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate batch script: %w", err)
	}

	if job.OutputScript != "" {
		logging.Info("Saving batch script to %s", job.OutputScript)
		if err := os.WriteFile(job.OutputScript, []byte(script), 0644); err != nil {
			return "", fmt.Errorf("failed to write batch script to file %s: %w", job.OutputScript, err)
		}
		logging.Info("Batch script saved successfully.")
		return "", nil
	}

	return s.submitScript(script)
}

// submitScript writes the script to a temporary file and hands it to sbatch.
func (s *SlurmOrchestrator) submitScript(script string) (string, error) {
	tmpFile, err := os.CreateTemp("", "kpg-batch-*.sh")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary batch script file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(script); err != nil {
		return "", fmt.Errorf("failed to write batch script to temporary file: %w", err)
	}

	logging.Info("Batch script content:\n%s", script)
	logging.Info("Executing: %s %s", s.SbatchPath, tmpFile.Name())
	res := shell.ExecuteCommand(s.SbatchPath, tmpFile.Name())
	if res.Err != nil {
		return "", fmt.Errorf("failed to run sbatch: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("sbatch failed with exit code %d: %s\n%s", res.ExitCode, res.Stderr, res.Stdout)
	}

	jobID := ParseJobID(res.Stdout)
	if jobID == "" {
		logging.Info("Job submitted; sbatch output: %s", strings.TrimSpace(res.Stdout))
		return "", nil
	}
	logging.Info("Submitted batch job %s", jobID)
	return jobID, nil
}

// ParseJobID extracts the job ID from sbatch's stdout. Plain sbatch prints
// "Submitted batch job <id>"; with --parsable it prints the bare ID
// (optionally ";cluster").
func ParseJobID(stdout string) string {
	out := strings.TrimSpace(stdout)
	if out == "" {
		return ""
	}

	const prefix = "Submitted batch job "
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.Fields(strings.TrimPrefix(line, prefix))[0]
		}
	}

	// --parsable style: a leading numeric token, possibly ";cluster".
	first := strings.SplitN(out, ";", 2)[0]
	for _, r := range first {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return first
}
