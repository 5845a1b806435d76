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

package orchestrator

import "kpg-launcher/pkg/launcher"

// JobDefinition holds all the necessary parameters to define a pipeline job.
// This struct is intended to be general enough to support various schedulers,
// with specific orchestrator implementations extracting the fields relevant
// to them.
type JobDefinition struct {
	// Resources is the resource request handed to the scheduler.
	Resources launcher.Resources
	// Request is the pipeline command line content for this job.
	Request launcher.LaunchRequest
	// Interpreter and Entrypoint identify the pipeline program.
	Interpreter string
	Entrypoint  string
	// EnvSetup lines run inside the allocation before the pipeline starts.
	EnvSetup []string
	// OutputScript, when set, saves the generated batch script to this path
	// instead of submitting it.
	OutputScript string
}

// Orchestrator defines the interface for submitting pipeline jobs to a
// cluster scheduler.
type Orchestrator interface {
	// SubmitJob takes a JobDefinition and orchestrates its submission,
	// returning the scheduler-assigned job ID. The ID is empty when the
	// job definition was saved to a file instead of submitted.
	SubmitJob(job JobDefinition) (string, error)
}
