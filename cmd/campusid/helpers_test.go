// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv is an isolated data and config directory shared by several
// CLI invocations, standing in for separate process runs.
type testEnv struct {
	t       *testing.T
	dataDir string
	cfgFile string
	deps    *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		t:       t,
		dataDir: filepath.Join(root, "data"),
		cfgFile: filepath.Join(root, "config.yaml"),
	}
	env.deps = &Deps{
		DataDirGetter:    func() (string, error) { return env.dataDir, nil },
		ConfigFileGetter: func() (string, error) { return env.cfgFile, nil },
	}
	return env
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (e *testEnv) run(stdin string, args ...string) cliResult {
	e.t.Helper()
	cmd := newRootCmdWithDeps(e.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

var registerStudentArgs = []string{
	"register",
	"--email", "a@x.edu",
	"--password", "pw123456",
	"--role", "student",
	"--first-name", "Asha",
	"--last-name", "Rao",
	"--roll-number", "A12345678901",
	"--department", "Computer Science",
	"--graduation-year", "2027",
}

const studentJSON = `{"email":"a@x.edu","password":"pw123456","role":"student",` +
	`"first_name":"Asha","last_name":"Rao",` +
	`"student":{"roll_number":"A12345678901","department":"Computer Science","graduation_year":2027}}`
