package action

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
	"github.com/tombee/actionschema/pkg/uses"
)

// Step is one step of a composite action. Unlike workflow run steps,
// composite run steps have no job-level default to fall back on, so
// `shell` is required.
type Step struct {
	ID              string          `yaml:"id,omitempty"`
	Name            string          `yaml:"name,omitempty"`
	If              *expr.Condition `yaml:"if,omitempty"`
	Env             expr.Env        `yaml:"env,omitempty"`
	ContinueOnError expr.Bool       `yaml:"continue-on-error,omitempty"`

	// Exactly one of Run and Uses is set.
	Run  *RunStep  `yaml:"-"`
	Uses *UsesStep `yaml:"-"`
}

// RunStep holds the fields specific to a shell command step.
type RunStep struct {
	Run              string `yaml:"run"`
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory,omitempty"`
}

// UsesStep holds the fields specific to an action invocation step.
type UsesStep struct {
	Uses *uses.Reference `yaml:"uses"`
	With *expr.Vars      `yaml:"with,omitempty"`
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
	}
	err := merge(header{
		ID:              s.ID,
		Name:            s.Name,
		If:              s.If,
		Env:             s.Env,
		ContinueOnError: s.ContinueOnError,
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

func decodeSteps(d *schema.Decoder, n *yaml.Node) ([]*Step, error) {
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}
	if len(seq.Content) == 0 {
		return nil, errors.New(errors.MissingRequiredField,
			"steps must contain at least one step").
			WithPosition(seq.Line, seq.Column)
	}

	steps := make([]*Step, 0, len(seq.Content))
	ids := make(map[string]bool)
	for i, entry := range seq.Content {
		step, err := decodeStep(d, entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if step.ID != "" {
			if ids[step.ID] {
				return nil, errors.AtIndex(
					errors.New(errors.TypeMismatch, "duplicate step id %q", step.ID).
						WithPosition(entry.Line, entry.Column), i)
			}
			ids[step.ID] = true
		}
		steps = append(steps, step)
	}
	return steps, nil
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
	if s.Env, err = expr.DecodeEnv(d, m.Get("env")); err != nil {
		return nil, errors.AtKey(err, "env")
	}
	if coe := m.Get("continue-on-error"); !schema.IsNull(coe) {
		if s.ContinueOnError, err = expr.DecodeBool(coe); err != nil {
			return nil, errors.AtKey(err, "continue-on-error")
		}
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
	if r.Shell, err = requireString(m, "shell"); err != nil {
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
