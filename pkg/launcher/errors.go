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

package launcher

import "fmt"

// LaunchFailureError reports that the pipeline process could not be started
// at all, typically because the interpreter or entry point does not exist or
// is not executable. It is detected at invocation time; paths are never
// validated in advance.
type LaunchFailureError struct {
	Path string
	Err  error
}

func (e *LaunchFailureError) Error() string {
	return fmt.Sprintf("failed to launch pipeline via %q: %v", e.Path, e.Err)
}

func (e *LaunchFailureError) Unwrap() error {
	return e.Err
}

// NonZeroExitError carries the exit status of a pipeline process that ran
// and terminated with a non-zero code. The code is the child's status,
// forwarded unchanged.
type NonZeroExitError struct {
	Code int
}

func (e *NonZeroExitError) Error() string {
	return fmt.Sprintf("pipeline process exited with status %d", e.Code)
}
