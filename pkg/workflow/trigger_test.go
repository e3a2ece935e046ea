package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

func decodeTriggerSrc(t *testing.T, src string) (*Trigger, error) {
	t.Helper()
	return decodeTrigger(schema.NewDecoder(), parseNode(t, src))
}

func TestDecodeTriggerForms(t *testing.T) {
	// The scalar, sequence, and mapping forms all normalize the same
	// way: a listed event is present with a zero-value configuration.
	for _, src := range []string{
		"push",
		"[push]",
		"push:\n",
	} {
		tr, err := decodeTriggerSrc(t, src)
		require.NoError(t, err, src)
		assert.Equal(t, []string{"push"}, tr.Names(), src)
		require.NotNil(t, tr.Push, src)
		assert.Empty(t, tr.Push.Branches, src)
	}
}

func TestDecodeTriggerOrder(t *testing.T) {
	tr, err := decodeTriggerSrc(t, "[workflow_dispatch, push, pull_request]")
	require.NoError(t, err)
	assert.Equal(t, []string{"workflow_dispatch", "push", "pull_request"}, tr.Names())
	assert.True(t, tr.Has("push"))
	assert.False(t, tr.Has("schedule"))
}

func TestDecodeTriggerDuplicateEvent(t *testing.T) {
	_, err := decodeTriggerSrc(t, "[push, push]")
	assert.Error(t, err)
}

func TestDecodePushFilters(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
push:
  branches: [main, "release/*"]
  tags-ignore: ["v0.*"]
  paths:
    - "**.go"
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "release/*"}, tr.Push.Branches)
	assert.Equal(t, []string{"v0.*"}, tr.Push.TagsIgnore)
	assert.Equal(t, []string{"**.go"}, tr.Push.Paths)
}

func TestDecodePushConflictingFilters(t *testing.T) {
	_, err := decodeTriggerSrc(t, `
push:
  branches: [main]
  branches-ignore: [dev]
`)
	require.Equal(t, errors.AmbiguousShape, errors.KindOf(err))
	assert.Contains(t, err.Error(), "branches-ignore")
}

func TestDecodePushFilterFirstError(t *testing.T) {
	// With two malformed filters the same error surfaces every run.
	for i := 0; i < 8; i++ {
		_, err := decodeTriggerSrc(t, `
push:
  paths:
    glob: "**.go"
  branches:
    pattern: main
`)
		require.Equal(t, errors.TypeMismatch, errors.KindOf(err))

		var perr *errors.ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "push.branches[0]", perr.Path.String())
	}
}

func TestDecodePullRequestTypes(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
pull_request:
  types: [opened, synchronize]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"opened", "synchronize"}, tr.PullRequest.Types)
}

func TestDecodeSchedule(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
schedule:
  - cron: "0 12 * * *"
  - cron: "30 5 * * 1"
`)
	require.NoError(t, err)
	require.Len(t, tr.Schedule, 2)
	assert.Equal(t, "0 12 * * *", tr.Schedule[0].Cron)

	// A bare schedule listing has no cron entries to run.
	_, err = decodeTriggerSrc(t, "schedule:\n")
	assert.Equal(t, errors.MissingRequiredField, errors.KindOf(err))

	_, err = decodeTriggerSrc(t, "schedule:\n  - interval: daily\n")
	assert.Equal(t, errors.MissingRequiredField, errors.KindOf(err))
}

func TestDecodeWorkflowCall(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
workflow_call:
  inputs:
    environment:
      description: target environment
      type: string
      required: true
    dry-run:
      type: boolean
      default: false
  outputs:
    artifact:
      value: ${{ jobs.build.outputs.artifact }}
  secrets:
    token:
      required: true
`)
	require.NoError(t, err)
	wc := tr.WorkflowCall
	require.NotNil(t, wc)

	assert.Equal(t, []string{"environment", "dry-run"}, wc.Inputs.Keys())
	env, _ := wc.Inputs.Get("environment")
	assert.Equal(t, "string", env.Type)
	assert.True(t, env.Required.Literal)

	artifact, ok := wc.Outputs.Get("artifact")
	require.True(t, ok)
	assert.True(t, artifact.Value.IsExpr())

	token, ok := wc.Secrets.Get("token")
	require.True(t, ok)
	assert.True(t, token.Required.Literal)
}

func TestDecodeWorkflowCallOutputRequiresValue(t *testing.T) {
	_, err := decodeTriggerSrc(t, `
workflow_call:
  outputs:
    artifact:
      description: built artifact
`)
	assert.Equal(t, errors.MissingRequiredField, errors.KindOf(err))
}

func TestDecodeWorkflowDispatch(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
workflow_dispatch:
  inputs:
    level:
      type: choice
      options: [debug, info, warn]
      default: info
`)
	require.NoError(t, err)
	level, ok := tr.WorkflowDispatch.Inputs.Get("level")
	require.True(t, ok)
	assert.Equal(t, "choice", level.Type)
	assert.Equal(t, []string{"debug", "info", "warn"}, level.Options)
	assert.Equal(t, "info", level.Default.AsString())
}

func TestDecodeWorkflowRun(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
workflow_run:
  workflows: [CI]
  types: [completed]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"CI"}, tr.WorkflowRun.Workflows)

	// workflows is the whole point of the trigger.
	_, err = decodeTriggerSrc(t, "workflow_run:\n  types: [completed]\n")
	assert.Equal(t, errors.MissingRequiredField, errors.KindOf(err))
}

func TestDecodeGenericEvent(t *testing.T) {
	tr, err := decodeTriggerSrc(t, `
issues:
  types: [opened]
release:
`)
	require.NoError(t, err)
	issues, ok := tr.Generic.Get("issues")
	require.True(t, ok)
	assert.Equal(t, []string{"opened"}, issues.Types)

	release, ok := tr.Generic.Get("release")
	require.True(t, ok)
	assert.Empty(t, release.Types)
	assert.Equal(t, []string{"issues", "release"}, tr.Names())
}

func TestDecodeTriggerUnknownEvent(t *testing.T) {
	_, err := decodeTriggerSrc(t, "[push, pusj]")
	require.Equal(t, errors.UnknownKey, errors.KindOf(err))
	assert.Contains(t, err.Error(), "pusj")

	// Lenient mode drops the event instead of failing.
	tr, err := decodeTrigger(schema.NewDecoder(schema.Lenient(nil)), parseNode(t, "[push, pusj]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"push"}, tr.Names())
}

func TestDecodeTriggerRejectsScalarBody(t *testing.T) {
	_, err := decodeTriggerSrc(t, "push: always\n")
	assert.Equal(t, errors.TypeMismatch, errors.KindOf(err))
}
