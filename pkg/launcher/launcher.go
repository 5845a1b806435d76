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

// Package launcher assembles and executes a single invocation of the
// keyphrase-generation pipeline process.
package launcher

import (
	"fmt"
	"strconv"
	"strings"

	"kpg-launcher/pkg/logging"
	"kpg-launcher/pkg/shell"
)

// LaunchRequest is the ordered set of flags and values passed to the
// pipeline process for one job. It is constructed once per submission and
// consumed exactly once.
type LaunchRequest struct {
	Config     string // pipeline YAML configuration file
	Tasks      string // task mode, e.g. "pred"
	ExpRootDir string // experiment root directory
	DataDir    string // input data directory
	OutputDir  string // output data directory
	GPU        string // accelerator index handed to the pipeline, e.g. "0"
	BatchSize  int
	BeamSize   int
	MaxLength  int
}

// Flag is one name/value pair on the pipeline command line.
type Flag struct {
	Name  string
	Value string
}

// Flags returns every pipeline flag in its fixed command-line order.
// The order never changes between invocations; the pipeline does not care,
// but stable output keeps logs and batch scripts readable and diffable.
func (r LaunchRequest) Flags() []Flag {
	return []Flag{
		{"-config", r.Config},
		{"-tasks", r.Tasks},
		{"-exp_root_dir", r.ExpRootDir},
		{"-data_dir", r.DataDir},
		{"-output_dir", r.OutputDir},
		{"-gpu", r.GPU},
		{"-batch_size", strconv.Itoa(r.BatchSize)},
		{"-beam_size", strconv.Itoa(r.BeamSize)},
		{"-max_length", strconv.Itoa(r.MaxLength)},
	}
}

// Validate checks that every flag the pipeline requires carries a value.
func (r LaunchRequest) Validate() error {
	named := []struct {
		flag, value string
	}{
		{"-config", r.Config},
		{"-tasks", r.Tasks},
		{"-exp_root_dir", r.ExpRootDir},
		{"-data_dir", r.DataDir},
		{"-output_dir", r.OutputDir},
		{"-gpu", r.GPU},
	}
	for _, nv := range named {
		if nv.value == "" {
			return fmt.Errorf("pipeline flag %s has no value", nv.flag)
		}
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("pipeline flag -batch_size must be positive, got %d", r.BatchSize)
	}
	if r.BeamSize <= 0 {
		return fmt.Errorf("pipeline flag -beam_size must be positive, got %d", r.BeamSize)
	}
	if r.MaxLength <= 0 {
		return fmt.Errorf("pipeline flag -max_length must be positive, got %d", r.MaxLength)
	}
	return nil
}

// Resources is the resource request handed to the external scheduler.
// None of these values are validated here; the scheduler owns them.
type Resources struct {
	Partition    string // compute pool / partition name
	GPUs         int    // accelerator count
	Time         string // wall-clock limit, D-HH:MM:SS
	Account      string
	Nodes        int
	TasksPerNode int
	CPUsPerTask  int
	Memory       string // e.g. "32G"
	JobName      string
	Output       string // standard-output path, e.g. "slurm-%j.out"
	QOS          string
}

// Launcher assembles a LaunchRequest into one command and runs it.
type Launcher struct {
	// Interpreter is the path to the runtime executing the pipeline,
	// e.g. "python".
	Interpreter string
	// Entrypoint is the pipeline program handed to the interpreter.
	Entrypoint string
	// EnvSetup, when non-nil, runs before the pipeline is spawned. It is an
	// environment repair hook (shell-profile reload on some clusters) and is
	// never part of the assembled command line.
	EnvSetup func() error
}

// Args returns the full argv for the pipeline invocation, the entrypoint
// followed by every flag/value pair in fixed order.
func (l *Launcher) Args(req LaunchRequest) []string {
	args := []string{l.Entrypoint}
	for _, f := range req.Flags() {
		args = append(args, f.Name, f.Value)
	}
	return args
}

// CommandString renders the invocation as a single command string, exactly
// as it is logged and as it appears in generated batch scripts. Identical
// requests always render byte-identical strings.
func (l *Launcher) CommandString(req LaunchRequest) string {
	return l.Interpreter + " " + strings.Join(l.Args(req), " ")
}

// Launch validates the request, announces the assembled command, spawns the
// pipeline process and blocks until it terminates. The child inherits this
// process's stdout and stderr. The child's exit status is forwarded
// unchanged: a non-zero exit surfaces as *NonZeroExitError, a process that
// could not be started at all as *LaunchFailureError. No retries.
func (l *Launcher) Launch(req LaunchRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if l.EnvSetup != nil {
		if err := l.EnvSetup(); err != nil {
			return &LaunchFailureError{Path: l.Interpreter, Err: err}
		}
	}

	logging.Info("Launching pipeline: %s", l.CommandString(req))

	res := shell.NewCommand(l.Interpreter, l.Args(req)...).Stream()
	if res.Err != nil {
		return &LaunchFailureError{Path: l.Interpreter, Err: res.Err}
	}
	if res.ExitCode != 0 {
		return &NonZeroExitError{Code: res.ExitCode}
	}
	return nil
}

// ExitCode maps a Launch error to the process exit status the toolkit
// should itself exit with, forwarding the pipeline's status unchanged.
// A nil error is 0; a launch failure is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if nz, ok := err.(*NonZeroExitError); ok {
		return nz.Code
	}
	return 1
}
