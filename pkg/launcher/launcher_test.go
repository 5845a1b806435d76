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

import (
	"strings"
	"testing"
)

func exampleRequest() LaunchRequest {
	return LaunchRequest{
		Config:     "keyphrase-one2seq-controlled.yml",
		Tasks:      "pred",
		ExpRootDir: "exps",
		DataDir:    "data/kp20k",
		OutputDir:  "output/kp20k",
		GPU:        "0",
		BatchSize:  32,
		BeamSize:   1,
		MaxLength:  60,
	}
}

func TestCommandStringFixedOrder(t *testing.T) {
	l := Launcher{Interpreter: "python", Entrypoint: "kp_run.py"}

	want := "python kp_run.py" +
		" -config keyphrase-one2seq-controlled.yml" +
		" -tasks pred" +
		" -exp_root_dir exps" +
		" -data_dir data/kp20k" +
		" -output_dir output/kp20k" +
		" -gpu 0" +
		" -batch_size 32" +
		" -beam_size 1" +
		" -max_length 60"

	got := l.CommandString(exampleRequest())
	if got != want {
		t.Errorf("CommandString mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestCommandStringDeterministic(t *testing.T) {
	l := Launcher{Interpreter: "python", Entrypoint: "kp_run.py"}

	first := l.CommandString(exampleRequest())
	second := l.CommandString(exampleRequest())
	if first != second {
		t.Errorf("identical requests rendered different command strings:\n %q\n %q", first, second)
	}
}

func TestFlagsEachExactlyOnce(t *testing.T) {
	cmd := " " + strings.Join((&Launcher{Interpreter: "python", Entrypoint: "kp_run.py"}).Args(exampleRequest()), " ") + " "

	for _, f := range exampleRequest().Flags() {
		pair := " " + f.Name + " " + f.Value + " "
		if n := strings.Count(cmd, " "+f.Name+" "); n != 1 {
			t.Errorf("flag %s appears %d times, want 1", f.Name, n)
		}
		if !strings.Contains(cmd, pair) {
			t.Errorf("flag %s is not immediately followed by its value %q", f.Name, f.Value)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LaunchRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *LaunchRequest) {}, wantErr: false},
		{name: "missing config", mutate: func(r *LaunchRequest) { r.Config = "" }, wantErr: true},
		{name: "missing tasks", mutate: func(r *LaunchRequest) { r.Tasks = "" }, wantErr: true},
		{name: "missing exp root dir", mutate: func(r *LaunchRequest) { r.ExpRootDir = "" }, wantErr: true},
		{name: "missing data dir", mutate: func(r *LaunchRequest) { r.DataDir = "" }, wantErr: true},
		{name: "missing output dir", mutate: func(r *LaunchRequest) { r.OutputDir = "" }, wantErr: true},
		{name: "missing gpu", mutate: func(r *LaunchRequest) { r.GPU = "" }, wantErr: true},
		{name: "zero batch size", mutate: func(r *LaunchRequest) { r.BatchSize = 0 }, wantErr: true},
		{name: "negative beam size", mutate: func(r *LaunchRequest) { r.BeamSize = -1 }, wantErr: true},
		{name: "zero max length", mutate: func(r *LaunchRequest) { r.MaxLength = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := exampleRequest()
			tt.mutate(&req)
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLaunchSuccess(t *testing.T) {
	// "true" ignores the pipeline flags and exits 0.
	l := Launcher{Interpreter: "true", Entrypoint: "kp_run.py"}
	if err := l.Launch(exampleRequest()); err != nil {
		t.Errorf("Launch() with zero-exit child returned error: %v", err)
	}
}

func TestLaunchNonZeroExit(t *testing.T) {
	// "false" exits 1 regardless of arguments.
	l := Launcher{Interpreter: "false", Entrypoint: "kp_run.py"}
	err := l.Launch(exampleRequest())
	nz, ok := err.(*NonZeroExitError)
	if !ok {
		t.Fatalf("Launch() error = %v, want *NonZeroExitError", err)
	}
	if nz.Code != 1 {
		t.Errorf("NonZeroExitError.Code = %d, want 1", nz.Code)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode(err) = %d, want 1", ExitCode(err))
	}
}

func TestLaunchFailureMissingInterpreter(t *testing.T) {
	l := Launcher{Interpreter: "/nonexistent/interpreter", Entrypoint: "kp_run.py"}
	err := l.Launch(exampleRequest())
	if _, ok := err.(*LaunchFailureError); !ok {
		t.Fatalf("Launch() error = %v, want *LaunchFailureError", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("ExitCode(err) = %d, want 1", ExitCode(err))
	}
}

func TestLaunchEnvSetupFailureBlocksSpawn(t *testing.T) {
	hookRan := false
	l := Launcher{
		Interpreter: "true",
		Entrypoint:  "kp_run.py",
		EnvSetup: func() error {
			hookRan = true
			return &NonZeroExitError{Code: 2}
		},
	}
	err := l.Launch(exampleRequest())
	if _, ok := err.(*LaunchFailureError); !ok {
		t.Fatalf("Launch() error = %v, want *LaunchFailureError from env setup", err)
	}
	if !hookRan {
		t.Error("EnvSetup hook did not run")
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(&NonZeroExitError{Code: 7}); got != 7 {
		t.Errorf("ExitCode(NonZeroExit 7) = %d, want 7", got)
	}
}
