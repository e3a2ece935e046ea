package workflow

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
	"github.com/tombee/actionschema/pkg/uses"
)

// Step is one step of a normal job: either a shell command or an action
// invocation, discriminated by the presence of `run` or `uses`. A step
// with both fails as ambiguous and one with neither matches no shape.
type Step struct {
	// ID names the step for output references. Must be unique within
	// the job.
	ID string `yaml:"id,omitempty"`

	// Name is the step's display name.
	Name string `yaml:"name,omitempty"`

	// If gates the step on a condition. Bare conditions count as
	// expressions even without the `${{ }}` fence.
	If *expr.Condition `yaml:"if,omitempty"`

	// Env is the step-level environment block.
	Env expr.Env `yaml:"env,omitempty"`

	// ContinueOnError lets the job proceed past a failure of this step.
	ContinueOnError expr.Bool `yaml:"continue-on-error,omitempty"`

	// TimeoutMinutes bounds the step's runtime.
	TimeoutMinutes *expr.Int `yaml:"timeout-minutes,omitempty"`

	// Exactly one of Run and Uses is set.
	Run  *RunStep  `yaml:"-"`
	Uses *UsesStep `yaml:"-"`
}

// RunStep holds the fields specific to a shell command step.
type RunStep struct {
	// Run is the command text. Boolean- or numeric-looking scalars are
	// stringified the way the runner stringifies them.
	Run string `yaml:"run"`

	// Shell overrides the default shell.
	Shell string `yaml:"shell,omitempty"`

	// WorkingDirectory overrides the default working directory.
	WorkingDirectory string `yaml:"working-directory,omitempty"`
}

// UsesStep holds the fields specific to an action invocation step.
type UsesStep struct {
	// Uses references the invoked action.
	Uses *uses.Reference `yaml:"uses"`

	// With passes inputs to the action.
	With *expr.Vars `yaml:"with,omitempty"`
}

// MarshalYAML flattens the shared fields and the variant's fields into
// one mapping.
func (s *Step) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	merge := func(v any) error {
		sub := &yaml.Node{}
		if err := sub.Encode(v); err != nil {
			return err
		}
		if sub.Kind == yaml.MappingNode {
			node.Content = append(node.Content, sub.Content...)
		}
		return nil
	}

	type header struct {
		ID              string          `yaml:"id,omitempty"`
		Name            string          `yaml:"name,omitempty"`
		If              *expr.Condition `yaml:"if,omitempty"`
		Env             expr.Env        `yaml:"env,omitempty"`
		ContinueOnError expr.Bool       `yaml:"continue-on-error,omitempty"`
		TimeoutMinutes  *expr.Int       `yaml:"timeout-minutes,omitempty"`
	}
	err := merge(header{
		ID:              s.ID,
		Name:            s.Name,
		If:              s.If,
		Env:             s.Env,
		ContinueOnError: s.ContinueOnError,
		TimeoutMinutes:  s.TimeoutMinutes,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case s.Run != nil:
		err = merge(s.Run)
	case s.Uses != nil:
		err = merge(s.Uses)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

var stepVariants = []schema.Variant{
	{Name: "run", Require: []string{"run"}},
	{Name: "uses", Require: []string{"uses"}},
}

func decodeStep(d *schema.Decoder, n *yaml.Node) (*Step, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	variant, err := schema.ResolveVariant(m, "step", stepVariants...)
	if err != nil {
		return nil, err
	}

	s := &Step{}
	if s.ID, err = optString(m, "id"); err != nil {
		return nil, err
	}
	if s.Name, err = optString(m, "name"); err != nil {
		return nil, err
	}
	if s.If, err = optCondition(m, "if"); err != nil {
		return nil, err
	}
	if s.Env, err = decodeEnvField(d, m, "env"); err != nil {
		return nil, err
	}
	if s.ContinueOnError, err = optBool(m, "continue-on-error"); err != nil {
		return nil, err
	}
	if s.TimeoutMinutes, err = optInt(m, "timeout-minutes"); err != nil {
		return nil, err
	}

	switch variant {
	case "run":
		s.Run, err = decodeRunStep(m)
	case "uses":
		s.Uses, err = decodeUsesStep(d, m)
	}
	if err != nil {
		return nil, err
	}
	return s, m.Finish()
}

func decodeRunStep(m *schema.Mapping) (*RunStep, error) {
	r := &RunStep{}

	runNode, err := m.Require("run")
	if err != nil {
		return nil, err
	}
	if r.Run, err = expr.DecodeString(runNode); err != nil {
		return nil, errors.AtKey(err, "run")
	}
	if r.Shell, err = optString(m, "shell"); err != nil {
		return nil, err
	}
	if r.WorkingDirectory, err = optString(m, "working-directory"); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeUsesStep(d *schema.Decoder, m *schema.Mapping) (*UsesStep, error) {
	u := &UsesStep{}

	usesNode, err := m.Require("uses")
	if err != nil {
		return nil, err
	}
	ref, err := expr.DecodeString(usesNode)
	if err != nil {
		return nil, errors.AtKey(err, "uses")
	}
	if u.Uses, err = uses.ParseStep(ref); err != nil {
		return nil, errors.AtKey(err, "uses")
	}

	if with := m.Get("with"); !schema.IsNull(with) {
		if u.With, err = expr.DecodeVars(d, with); err != nil {
			return nil, errors.AtKey(err, "with")
		}
	}
	return u, nil
}
