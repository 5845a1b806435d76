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

// Package jobconfig loads the YAML job file that binds a resource request
// and a pipeline launch request for one submission.
package jobconfig

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"kpg-launcher/pkg/launcher"
	"kpg-launcher/pkg/orchestrator"
)

// JobSection is the scheduler-facing half of a job file.
type JobSection struct {
	Name         string `yaml:"name"`
	Partition    string `yaml:"partition"`
	GPUs         int    `yaml:"gpus"`
	Time         string `yaml:"time"`
	Account      string `yaml:"account"`
	Nodes        int    `yaml:"nodes"`
	TasksPerNode int    `yaml:"tasks_per_node"`
	CPUsPerTask  int    `yaml:"cpus_per_task"`
	Memory       string `yaml:"memory"`
	Output       string `yaml:"output"`
	QOS          string `yaml:"qos"`
}

// PipelineSection is the pipeline-facing half of a job file.
type PipelineSection struct {
	Interpreter string `yaml:"interpreter"`
	Entrypoint  string `yaml:"entrypoint"`
	Config      string `yaml:"config"`
	Tasks       string `yaml:"tasks"`
	ExpRootDir  string `yaml:"exp_root_dir"`
	DataDir     string `yaml:"data_dir"`
	OutputDir   string `yaml:"output_dir"`
	GPU         string `yaml:"gpu"`
	BatchSize   int    `yaml:"batch_size"`
	BeamSize    int    `yaml:"beam_size"`
	MaxLength   int    `yaml:"max_length"`
}

// JobFile is one declared submission.
type JobFile struct {
	Job      JobSection      `yaml:"job"`
	Pipeline PipelineSection `yaml:"pipeline"`
	// EnvSetup lines run inside the allocation before the pipeline starts.
	EnvSetup []string `yaml:"env_setup"`
}

// DefaultEnvSetup is the shell-profile reload most clusters need inside an
// allocation to repair the dynamic-library search path for the pipeline
// runtime. Set `env_setup: []` in the job file to disable it.
var DefaultEnvSetup = []string{"source ~/.bashrc"}

// Load reads and decodes a job file from the given filesystem.
func Load(fs afero.Fs, path string) (*JobFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read job file %s", path)
	}

	jf := JobFile{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&jf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse job file %s", path)
	}

	if jf.Pipeline.Interpreter == "" {
		jf.Pipeline.Interpreter = "python"
	}
	if jf.EnvSetup == nil {
		jf.EnvSetup = DefaultEnvSetup
	}

	if err := jf.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid job file %s", path)
	}
	return &jf, nil
}

// Validate checks the fields this toolkit itself depends on. Resource
// values beyond these are passed through for the scheduler to judge.
func (jf *JobFile) Validate() error {
	if jf.Job.Partition == "" {
		return errors.New("job.partition must be set")
	}
	if jf.Job.Time == "" {
		return errors.New("job.time must be set (D-HH:MM:SS)")
	}
	if jf.Job.Memory == "" {
		return errors.New("job.memory must be set")
	}
	if jf.Pipeline.Entrypoint == "" {
		return errors.New("pipeline.entrypoint must be set")
	}
	return jf.LaunchRequest().Validate()
}

// Resources maps the job section onto a scheduler resource request.
func (jf *JobFile) Resources() launcher.Resources {
	return launcher.Resources{
		Partition:    jf.Job.Partition,
		GPUs:         jf.Job.GPUs,
		Time:         jf.Job.Time,
		Account:      jf.Job.Account,
		Nodes:        jf.Job.Nodes,
		TasksPerNode: jf.Job.TasksPerNode,
		CPUsPerTask:  jf.Job.CPUsPerTask,
		Memory:       jf.Job.Memory,
		JobName:      jf.Job.Name,
		Output:       jf.Job.Output,
		QOS:          jf.Job.QOS,
	}
}

// LaunchRequest maps the pipeline section onto a launch request.
func (jf *JobFile) LaunchRequest() launcher.LaunchRequest {
	return launcher.LaunchRequest{
		Config:     jf.Pipeline.Config,
		Tasks:      jf.Pipeline.Tasks,
		ExpRootDir: jf.Pipeline.ExpRootDir,
		DataDir:    jf.Pipeline.DataDir,
		OutputDir:  jf.Pipeline.OutputDir,
		GPU:        jf.Pipeline.GPU,
		BatchSize:  jf.Pipeline.BatchSize,
		BeamSize:   jf.Pipeline.BeamSize,
		MaxLength:  jf.Pipeline.MaxLength,
	}
}

// JobDefinition assembles the full definition handed to an orchestrator.
func (jf *JobFile) JobDefinition() orchestrator.JobDefinition {
	return orchestrator.JobDefinition{
		Resources:   jf.Resources(),
		Request:     jf.LaunchRequest(),
		Interpreter: jf.Pipeline.Interpreter,
		Entrypoint:  jf.Pipeline.Entrypoint,
		EnvSetup:    jf.EnvSetup,
	}
}
