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

package batchscript

import (
	"strings"
	"testing"

	"kpg-launcher/pkg/launcher"
)

func testResources() launcher.Resources {
	return launcher.Resources{
		Partition:    "gpu",
		GPUs:         1,
		Time:         "0-12:00:00",
		Account:      "kpgroup",
		Nodes:        1,
		TasksPerNode: 1,
		CPUsPerTask:  4,
		Memory:       "32G",
		JobName:      "kpg-one2seq-pred",
		Output:       "kpg-%j.out",
		QOS:          "normal",
	}
}

const testCommand = "python kp_run.py -config keyphrase-one2seq-controlled.yml -tasks pred" +
	" -exp_root_dir exps -data_dir data/kp20k -output_dir output/kp20k" +
	" -gpu 0 -batch_size 32 -beam_size 1 -max_length 60"

// assertDirective checks that the script carries a directive line exactly once.
func assertDirective(t *testing.T, script, directive string) {
	t.Helper()
	if n := strings.Count(script, directive+"\n"); n != 1 {
		t.Errorf("directive %q appears %d times, want 1", directive, n)
	}
}

func TestGenerateDirectives(t *testing.T) {
	script, err := Generate(ScriptOptions{
		Resources: testResources(),
		EnvSetup:  []string{"source ~/.bashrc"},
		Command:   testCommand,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.HasPrefix(script, "#!/bin/bash\n") {
		t.Errorf("script does not start with a shebang:\n%s", script)
	}

	for _, directive := range []string{
		"#SBATCH --partition=gpu",
		"#SBATCH --gres=gpu:1",
		"#SBATCH --time=0-12:00:00",
		"#SBATCH --account=kpgroup",
		"#SBATCH --nodes=1",
		"#SBATCH --ntasks-per-node=1",
		"#SBATCH --cpus-per-task=4",
		"#SBATCH --mem=32G",
		"#SBATCH --job-name=kpg-one2seq-pred",
		"#SBATCH --output=kpg-%j.out",
		"#SBATCH --qos=normal",
	} {
		assertDirective(t, script, directive)
	}

	if !strings.Contains(script, "\nsource ~/.bashrc\n") {
		t.Errorf("script is missing the env setup line:\n%s", script)
	}
	if !strings.HasSuffix(script, "\n"+testCommand+"\n") {
		t.Errorf("script does not end with the pipeline command:\n%s", script)
	}

	// The env setup must run before the pipeline command.
	if strings.Index(script, "source ~/.bashrc") > strings.Index(script, testCommand) {
		t.Error("env setup line appears after the pipeline command")
	}
}

func TestGenerateOptionalDirectivesOmitted(t *testing.T) {
	res := testResources()
	res.GPUs = 0
	res.Account = ""
	res.QOS = ""

	script, err := Generate(ScriptOptions{Resources: res, Command: testCommand})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	for _, directive := range []string{"--gres", "--account", "--qos"} {
		if strings.Contains(script, directive) {
			t.Errorf("script contains %s directive for an unset value:\n%s", directive, script)
		}
	}
}

func TestGenerateDefaults(t *testing.T) {
	res := testResources()
	res.JobName = ""
	res.Output = ""
	res.Nodes = 0
	res.TasksPerNode = 0
	res.CPUsPerTask = 0

	script, err := Generate(ScriptOptions{Resources: res, Command: testCommand})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	for _, directive := range []string{
		"#SBATCH --job-name=kpg-job-",
		"#SBATCH --nodes=1",
		"#SBATCH --ntasks-per-node=1",
		"#SBATCH --cpus-per-task=1",
	} {
		if !strings.Contains(script, directive) {
			t.Errorf("script is missing defaulted directive %q:\n%s", directive, script)
		}
	}
	if !strings.Contains(script, "-%j.out") {
		t.Errorf("script is missing a defaulted output path:\n%s", script)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	opts := ScriptOptions{
		Resources: testResources(),
		EnvSetup:  []string{"source ~/.bashrc"},
		Command:   testCommand,
	}

	first, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	second, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if first != second {
		t.Errorf("identical options rendered different scripts:\n%q\n%q", first, second)
	}
}

func TestGenerateRejectsEmptyCommand(t *testing.T) {
	if _, err := Generate(ScriptOptions{Resources: testResources()}); err == nil {
		t.Error("Generate() with no command succeeded, want error")
	}
}
