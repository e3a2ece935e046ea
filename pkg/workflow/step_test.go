package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

func decodeStepSrc(t *testing.T, src string) (*Step, error) {
	t.Helper()
	return decodeStep(schema.NewDecoder(), parseNode(t, src))
}

func TestDecodeRunStep(t *testing.T) {
	s, err := decodeStepSrc(t, `
name: Run tests
run: |
  make lint
  make test
shell: bash
working-directory: ./src
env:
  CI: "true"
`)
	require.NoError(t, err)
	require.NotNil(t, s.Run)
	assert.Nil(t, s.Uses)

	assert.Equal(t, "Run tests", s.Name)
	assert.Equal(t, "make lint\nmake test\n", s.Run.Run)
	assert.Equal(t, "bash", s.Run.Shell)
	assert.Equal(t, "./src", s.Run.WorkingDirectory)
	ci, ok := s.Env.Vars.Get("CI")
	require.True(t, ok)
	assert.Equal(t, "true", ci.AsString())
}

func TestDecodeRunStepStringifiesScalars(t *testing.T) {
	// A bare boolean or number in run position is stringified, not
	// rejected: `run: true` runs the command "true".
	s, err := decodeStepSrc(t, "run: true\n")
	require.NoError(t, err)
	assert.Equal(t, "true", s.Run.Run)

	s, err = decodeStepSrc(t, "run: 42\n")
	require.NoError(t, err)
	assert.Equal(t, "42", s.Run.Run)
}

func TestDecodeUsesStep(t *testing.T) {
	s, err := decodeStepSrc(t, `
uses: actions/cache@v4
with:
  path: ~/.cache/pip
  key: pip-${{ hashFiles('requirements.txt') }}
`)
	require.NoError(t, err)
	require.NotNil(t, s.Uses)
	assert.Equal(t, "cache", s.Uses.Uses.Remote.Repo)

	key, ok := s.Uses.With.Get("key")
	require.True(t, ok)
	assert.True(t, key.IsExpr())
}

func TestDecodeStepShape(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		kind errors.Kind
	}{
		{name: "both", yaml: "run: make\nuses: actions/checkout@v4\n", kind: errors.AmbiguousShape},
		{name: "neither", yaml: "name: no-op\n", kind: errors.UnrecognizedShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeStepSrc(t, tt.yaml)
			require.Equal(t, tt.kind, errors.KindOf(err))

			var perr *errors.ParseError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Keys)
		})
	}
}

func TestDecodeStepNullRun(t *testing.T) {
	// An explicit null selects the run shape but cannot satisfy it.
	_, err := decodeStepSrc(t, "run:\n")
	assert.Equal(t, errors.MissingRequiredField, errors.KindOf(err))
}

func TestDecodeStepConditionAndFlags(t *testing.T) {
	s, err := decodeStepSrc(t, `
if: ${{ failure() }}
run: make report
continue-on-error: true
timeout-minutes: ${{ inputs.timeout }}
`)
	require.NoError(t, err)
	assert.True(t, s.If.IsExpr())
	assert.True(t, s.ContinueOnError.Literal)
	require.NotNil(t, s.TimeoutMinutes.Expr)
	assert.Equal(t, "inputs.timeout", s.TimeoutMinutes.Expr.Inner())

	// Bare conditions are expressions too; the fence is optional.
	s, err = decodeStepSrc(t, "if: success()\nrun: make\n")
	require.NoError(t, err)
	assert.True(t, s.If.IsExpr())
	assert.Equal(t, "success()", s.If.AsString())

	// Only a boolean literal is not an expression.
	s, err = decodeStepSrc(t, "if: false\nrun: make\n")
	require.NoError(t, err)
	assert.False(t, s.If.IsExpr())
	assert.False(t, s.If.Literal)
}

func TestDecodeStepUnknownKey(t *testing.T) {
	_, err := decodeStepSrc(t, "run: make\nwith:\n  key: value\n")
	require.Equal(t, errors.UnknownKey, errors.KindOf(err))
	assert.Contains(t, err.Error(), "with")
}

func TestDecodeStepInvalidUses(t *testing.T) {
	_, err := decodeStepSrc(t, "uses: actions/checkout\n")
	require.Equal(t, errors.TypeMismatch, errors.KindOf(err))
	assert.Contains(t, err.Error(), "uses")
}
