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

// Package shell runs external commands and captures their output and exit
// status for the rest of the toolkit.
package shell

import (
	"bytes"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured outcome of an executed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err is set when the command could not be started at all (e.g. the
	// binary does not exist). ExitCode is -1 in that case.
	Err error
}

// Command wraps a single external command invocation.
type Command struct {
	name  string
	args  []string
	stdin string
}

// NewCommand prepares a command for execution.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// SetInput feeds the given string to the command's standard input.
func (c *Command) SetInput(input string) *Command {
	c.stdin = input
	return c
}

// Execute runs the command, blocking until it terminates.
func (c *Command) Execute() Result {
	cmd := exec.Command(c.name, c.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.stdin != "" {
		cmd.Stdin = strings.NewReader(c.stdin)
	}

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return res
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res
	}

	// The process never started.
	res.ExitCode = -1
	res.Err = err
	return res
}

// Stream runs the command with stdout and stderr inherited from the
// current process instead of captured. Stdout and Stderr in the returned
// Result are empty; the child writes directly to the caller's streams.
func (c *Command) Stream() Result {
	cmd := exec.Command(c.name, c.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if c.stdin != "" {
		cmd.Stdin = strings.NewReader(c.stdin)
	}

	err := cmd.Run()
	if err == nil {
		return Result{}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return Result{ExitCode: exitErr.ExitCode()}
	}
	return Result{ExitCode: -1, Err: err}
}

// ExecuteCommand runs name with args and captures its output.
func ExecuteCommand(name string, args ...string) Result {
	return NewCommand(name, args...).Execute()
}

// LookPath reports whether the named binary can be found on PATH,
// returning its resolved path.
func LookPath(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

// RandomString generates a random lowercase string of the given length.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
