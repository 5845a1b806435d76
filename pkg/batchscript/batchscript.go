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

// Package batchscript renders Slurm batch scripts for pipeline jobs.
package batchscript

import (
	"bytes"
	"fmt"
	"text/template"

	"kpg-launcher/pkg/launcher"
	"kpg-launcher/pkg/shell"
)

// SlurmScriptTemplate is the Go template for generating a Slurm batch
// script: resource directives, optional environment setup lines, then the
// single pipeline command.
const SlurmScriptTemplate = `#!/bin/bash
#SBATCH --partition={{.Partition}}
{{- if gt .GPUs 0}}
#SBATCH --gres=gpu:{{.GPUs}}
{{- end}}
#SBATCH --time={{.Time}}
{{- if .Account}}
#SBATCH --account={{.Account}}
{{- end}}
#SBATCH --nodes={{.Nodes}}
#SBATCH --ntasks-per-node={{.TasksPerNode}}
#SBATCH --cpus-per-task={{.CPUsPerTask}}
#SBATCH --mem={{.Memory}}
#SBATCH --job-name={{.JobName}}
#SBATCH --output={{.Output}}
{{- if .QOS}}
#SBATCH --qos={{.QOS}}
{{- end}}
{{range .EnvSetup}}
{{.}}
{{- end}}

{{.Command}}
`

// ScriptOptions holds parameters for batch script generation.
type ScriptOptions struct {
	Resources launcher.Resources
	// EnvSetup lines run before the pipeline command. On some clusters the
	// login profile must be re-sourced inside the allocation to repair the
	// dynamic-library search path.
	EnvSetup []string
	// Command is the fully assembled pipeline invocation.
	Command string
}

// Generate renders the batch script content. Zero-valued resource fields
// that Slurm requires are filled with single-node defaults; everything else
// is passed through for the scheduler to validate.
func Generate(opts ScriptOptions) (string, error) {
	if opts.Command == "" {
		return "", fmt.Errorf("batch script has no pipeline command")
	}

	res := opts.Resources
	if res.JobName == "" {
		res.JobName = "kpg-job-" + shell.RandomString(8)
	}
	if res.Output == "" {
		res.Output = res.JobName + "-%j.out"
	}
	if res.Nodes == 0 {
		res.Nodes = 1
	}
	if res.TasksPerNode == 0 {
		res.TasksPerNode = 1
	}
	if res.CPUsPerTask == 0 {
		res.CPUsPerTask = 1
	}

	tmpl, err := template.New("slurmScript").Parse(SlurmScriptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse batch script template: %w", err)
	}

	data := struct {
		launcher.Resources
		EnvSetup []string
		Command  string
	}{
		Resources: res,
		EnvSetup:  opts.EnvSetup,
		Command:   opts.Command,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute batch script template: %w", err)
	}
	return buf.String(), nil
}
