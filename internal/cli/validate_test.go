// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/actionschema/internal/log"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runValidate(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"validate"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, "dependabot", detectKind(".github/dependabot.yml"))
	assert.Equal(t, "action", detectKind("some/dir/action.yaml"))
	assert.Equal(t, "workflow", detectKind(".github/workflows/ci.yml"))
}

func TestValidateWorkflow(t *testing.T) {
	path := writeFile(t, "ci.yml", `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`)
	stdout, _, err := runValidate(t, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "workflow")
}

func TestValidateInvalidWorkflowJSON(t *testing.T) {
	path := writeFile(t, "ci.yml", `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
        uses: actions/checkout@v4
`)
	stdout, _, err := runValidate(t, path, "--json")
	require.Error(t, err)

	var results []result
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.False(t, results[0].Valid)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, "ambiguous_shape", results[0].Error.Kind)
	assert.Equal(t, "jobs.build.steps[0]", results[0].Error.Path)
	assert.Contains(t, results[0].Error.Keys, "run")
	assert.NotZero(t, results[0].Error.Line)
}

func TestValidateKindOverride(t *testing.T) {
	path := writeFile(t, "manifest.yml", `
name: n
description: d
runs:
  using: node20
  main: index.js
`)
	_, _, err := runValidate(t, path, "--kind", "action")
	assert.NoError(t, err)
}

func TestValidateLenientUnknownKeys(t *testing.T) {
	path := writeFile(t, "ci.yml", `
on: push
experimental-key: true
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`)
	_, _, err := runValidate(t, path)
	require.Error(t, err)

	_, _, err = runValidate(t, path, "--lenient")
	assert.NoError(t, err)
}

func TestValidateFileLogsDiagnostics(t *testing.T) {
	path := writeFile(t, "ci.yml", `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
        uses: actions/checkout@v4
`)
	var buf bytes.Buffer
	logger := log.New(&log.Config{Level: "debug", Format: log.FormatJSON, Output: &buf})
	r := validateFile(path, "workflow", false, logger)
	require.False(t, r.Valid)

	out := buf.String()
	assert.Contains(t, out, `"file":`)
	assert.Contains(t, out, `"kind":"ambiguous_shape"`)
	assert.Contains(t, out, `"path":"jobs.build.steps[0]"`)
}

func TestValidateMissingFile(t *testing.T) {
	_, stderr, err := runValidate(t, "does-not-exist.yml")
	require.Error(t, err)
	assert.Contains(t, stderr, "does-not-exist.yml")
}
