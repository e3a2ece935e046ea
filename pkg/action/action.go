// Package action provides typed data models for action manifests
// (action.yml). The runs block is a tagged union discriminated by the
// value of `using`: a JavaScript runtime, "composite", or "docker".
package action

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
)

// Action is a single action manifest.
type Action struct {
	// Name is the action's display name (required).
	Name string `yaml:"name"`

	// Description is the action's short description.
	Description string `yaml:"description,omitempty"`

	// Author is the action's author.
	Author string `yaml:"author,omitempty"`

	// Branding configures the marketplace badge.
	Branding *Branding `yaml:"branding,omitempty"`

	// Inputs declares the action's inputs in source order.
	Inputs *schema.OrderedMap[*Input] `yaml:"inputs,omitempty"`

	// Outputs declares the action's outputs in source order.
	Outputs *schema.OrderedMap[*Output] `yaml:"outputs,omitempty"`

	// Runs defines how the action executes (required).
	Runs *Runs `yaml:"runs"`
}

// Branding is the marketplace badge configuration.
type Branding struct {
	Icon  string `yaml:"icon,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// Input declares one action input.
type Input struct {
	Description string `yaml:"description,omitempty"`

	// Required marks the input mandatory for callers. The platform
	// default is false.
	Required expr.Bool `yaml:"required,omitempty"`

	// Default is the value used when the caller omits the input.
	Default *expr.Value `yaml:"default,omitempty"`

	// DeprecationMessage is shown when callers still set the input.
	DeprecationMessage string `yaml:"deprecationMessage,omitempty"`
}

// Output declares one action output. Composite actions must set Value;
// other kinds compute outputs at runtime and declare only metadata.
type Output struct {
	Description string      `yaml:"description,omitempty"`
	Value       *expr.Value `yaml:"value,omitempty"`
}

// Runs defines the action's execution. Exactly one of JavaScript,
// Composite, and Docker is set, selected by the value of `using`.
type Runs struct {
	JavaScript *JavaScriptRuns `yaml:"-"`
	Composite  *CompositeRuns  `yaml:"-"`
	Docker     *DockerRuns     `yaml:"-"`
}

// MarshalYAML renders whichever variant is set.
func (r *Runs) MarshalYAML() (any, error) {
	switch {
	case r.JavaScript != nil:
		return r.JavaScript, nil
	case r.Composite != nil:
		return r.Composite, nil
	case r.Docker != nil:
		return r.Docker, nil
	}
	return nil, nil
}

// JavaScriptRuns executes a script on a Node.js runtime.
type JavaScriptRuns struct {
	// Using is the runtime, e.g. "node20".
	Using string `yaml:"using"`

	// Main is the entry script (required).
	Main string `yaml:"main"`

	// Pre runs before Main; PreIf gates it.
	Pre   string          `yaml:"pre,omitempty"`
	PreIf *expr.Condition `yaml:"pre-if,omitempty"`

	// Post runs after Main; PostIf gates it.
	Post   string          `yaml:"post,omitempty"`
	PostIf *expr.Condition `yaml:"post-if,omitempty"`
}

// CompositeRuns executes a sequence of steps inline in the caller's job.
type CompositeRuns struct {
	Using string  `yaml:"using"`
	Steps []*Step `yaml:"steps"`
}

// DockerRuns executes a container.
type DockerRuns struct {
	Using string `yaml:"using"`

	// Image is the container image or a Dockerfile path (required).
	Image string `yaml:"image"`

	// Entrypoint overrides the image entrypoint.
	Entrypoint string `yaml:"entrypoint,omitempty"`

	// PreEntrypoint and PostEntrypoint run around the main entrypoint;
	// PreIf and PostIf gate them.
	PreEntrypoint  string          `yaml:"pre-entrypoint,omitempty"`
	PreIf          *expr.Condition `yaml:"pre-if,omitempty"`
	PostEntrypoint string          `yaml:"post-entrypoint,omitempty"`
	PostIf         *expr.Condition `yaml:"post-if,omitempty"`

	// Args are passed to the container.
	Args []expr.Value `yaml:"args,omitempty"`

	// Env is the container environment block.
	Env expr.Env `yaml:"env,omitempty"`
}

// Parse parses an action manifest from a YAML node tree.
//
// The default policy is strict: unknown keys fail with UnknownKey.
// Pass schema.Lenient to ignore and log them instead.
func Parse(node *yaml.Node, opts ...schema.Option) (*Action, error) {
	d := schema.NewDecoder(opts...)
	if err := d.CheckDepth(node); err != nil {
		return nil, err
	}

	m, err := d.Mapping(node)
	if err != nil {
		return nil, err
	}

	a := &Action{}
	if a.Name, err = requireString(m, "name"); err != nil {
		return nil, err
	}
	if a.Description, err = optString(m, "description"); err != nil {
		return nil, err
	}
	if a.Author, err = optString(m, "author"); err != nil {
		return nil, err
	}
	if a.Branding, err = decodeBranding(d, m.Get("branding")); err != nil {
		return nil, errors.AtKey(err, "branding")
	}

	if inputs := m.Get("inputs"); !schema.IsNull(inputs) {
		if a.Inputs, err = decodeInputs(d, inputs); err != nil {
			return nil, errors.AtKey(err, "inputs")
		}
	}
	if outputs := m.Get("outputs"); !schema.IsNull(outputs) {
		if a.Outputs, err = decodeOutputs(d, outputs); err != nil {
			return nil, errors.AtKey(err, "outputs")
		}
	}

	runsNode, err := m.Require("runs")
	if err != nil {
		return nil, err
	}
	if a.Runs, err = decodeRuns(d, runsNode); err != nil {
		return nil, errors.AtKey(err, "runs")
	}

	// Composite outputs are computed from declared values; the other
	// kinds set outputs at runtime.
	if a.Runs.Composite != nil && a.Outputs != nil {
		for _, name := range a.Outputs.Keys() {
			out, _ := a.Outputs.Get(name)
			if out.Value == nil {
				return nil, errors.AtKey(errors.AtKey(
					errors.New(errors.MissingRequiredField,
						"composite action outputs require a value"),
					name), "outputs")
			}
		}
	}

	if err := m.Finish(); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeBranding(d *schema.Decoder, n *yaml.Node) (*Branding, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	b := &Branding{}
	if b.Icon, err = optString(m, "icon"); err != nil {
		return nil, err
	}
	if b.Color, err = optString(m, "color"); err != nil {
		return nil, err
	}
	return b, m.Finish()
}

func decodeInputs(d *schema.Decoder, n *yaml.Node) (*schema.OrderedMap[*Input], error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	inputs := schema.NewOrderedMap[*Input]()
	err = m.Each(func(name string, value *yaml.Node) error {
		input, err := decodeInput(d, value)
		if err != nil {
			return err
		}
		inputs.Set(name, input)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inputs, nil
}

func decodeInput(d *schema.Decoder, n *yaml.Node) (*Input, error) {
	in := &Input{}
	if schema.IsNull(n) {
		return in, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if in.Description, err = optString(m, "description"); err != nil {
		return nil, err
	}
	if required := m.Get("required"); !schema.IsNull(required) {
		if in.Required, err = expr.DecodeBool(required); err != nil {
			return nil, errors.AtKey(err, "required")
		}
	}
	if def := m.Get("default"); !schema.IsNull(def) {
		v, err := expr.DecodeValue(def)
		if err != nil {
			return nil, errors.AtKey(err, "default")
		}
		in.Default = &v
	}
	if in.DeprecationMessage, err = optString(m, "deprecationMessage"); err != nil {
		return nil, err
	}
	return in, m.Finish()
}

func decodeOutputs(d *schema.Decoder, n *yaml.Node) (*schema.OrderedMap[*Output], error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	outputs := schema.NewOrderedMap[*Output]()
	err = m.Each(func(name string, value *yaml.Node) error {
		output := &Output{}
		if schema.IsNull(value) {
			outputs.Set(name, output)
			return nil
		}
		om, err := d.Mapping(value)
		if err != nil {
			return err
		}
		if output.Description, err = optString(om, "description"); err != nil {
			return err
		}
		if v := om.Get("value"); !schema.IsNull(v) {
			value, err := expr.DecodeValue(v)
			if err != nil {
				return errors.AtKey(err, "value")
			}
			output.Value = &value
		}
		if err := om.Finish(); err != nil {
			return err
		}
		outputs.Set(name, output)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

func decodeRuns(d *schema.Decoder, n *yaml.Node) (*Runs, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	usingNode, err := m.Require("using")
	if err != nil {
		return nil, err
	}
	using, err := expr.DecodeString(usingNode)
	if err != nil {
		return nil, errors.AtKey(err, "using")
	}

	r := &Runs{}
	switch {
	case strings.HasPrefix(using, "node"):
		r.JavaScript, err = decodeJavaScriptRuns(m, using)
	case using == "composite":
		r.Composite, err = decodeCompositeRuns(d, m)
	case using == "docker":
		r.Docker, err = decodeDockerRuns(d, m)
	default:
		return nil, errors.AtKey(
			errors.New(errors.UnrecognizedShape,
				"expected a node runtime, \"composite\", or \"docker\", found %q", using).
				WithPosition(usingNode.Line, usingNode.Column),
			"using")
	}
	if err != nil {
		return nil, err
	}
	return r, m.Finish()
}

func decodeJavaScriptRuns(m *schema.Mapping, using string) (*JavaScriptRuns, error) {
	js := &JavaScriptRuns{Using: using}

	var err error
	if js.Main, err = requireString(m, "main"); err != nil {
		return nil, err
	}
	if js.Pre, err = optString(m, "pre"); err != nil {
		return nil, err
	}
	if js.PreIf, err = optCondition(m, "pre-if"); err != nil {
		return nil, err
	}
	if js.Post, err = optString(m, "post"); err != nil {
		return nil, err
	}
	if js.PostIf, err = optCondition(m, "post-if"); err != nil {
		return nil, err
	}
	return js, nil
}

func decodeCompositeRuns(d *schema.Decoder, m *schema.Mapping) (*CompositeRuns, error) {
	c := &CompositeRuns{Using: "composite"}

	stepsNode, err := m.Require("steps")
	if err != nil {
		return nil, err
	}
	if c.Steps, err = decodeSteps(d, stepsNode); err != nil {
		return nil, errors.AtKey(err, "steps")
	}
	return c, nil
}

func decodeDockerRuns(d *schema.Decoder, m *schema.Mapping) (*DockerRuns, error) {
	dr := &DockerRuns{Using: "docker"}

	var err error
	if dr.Image, err = requireString(m, "image"); err != nil {
		return nil, err
	}
	if dr.Entrypoint, err = optString(m, "entrypoint"); err != nil {
		return nil, err
	}
	if dr.PreEntrypoint, err = optString(m, "pre-entrypoint"); err != nil {
		return nil, err
	}
	if dr.PreIf, err = optCondition(m, "pre-if"); err != nil {
		return nil, err
	}
	if dr.PostEntrypoint, err = optString(m, "post-entrypoint"); err != nil {
		return nil, err
	}
	if dr.PostIf, err = optCondition(m, "post-if"); err != nil {
		return nil, err
	}
	if args := m.Get("args"); !schema.IsNull(args) {
		elems := schema.ScalarOrSeq(args)
		for i, e := range elems {
			v, err := expr.DecodeValue(e)
			if err != nil {
				return nil, errors.AtKey(errors.AtIndex(err, i), "args")
			}
			dr.Args = append(dr.Args, v)
		}
	}
	if env := m.Get("env"); !schema.IsNull(env) {
		if dr.Env, err = expr.DecodeEnv(d, env); err != nil {
			return nil, errors.AtKey(err, "env")
		}
	}
	return dr, nil
}

func requireString(m *schema.Mapping, key string) (string, error) {
	n, err := m.Require(key)
	if err != nil {
		return "", err
	}
	s, err := expr.DecodeString(n)
	if err != nil {
		return "", errors.AtKey(err, key)
	}
	return s, nil
}

func optString(m *schema.Mapping, key string) (string, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return "", nil
	}
	s, err := expr.DecodeString(n)
	if err != nil {
		return "", errors.AtKey(err, key)
	}
	return s, nil
}

func optCondition(m *schema.Mapping, key string) (*expr.Condition, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return nil, nil
	}
	c, err := expr.DecodeCondition(n)
	if err != nil {
		return nil, errors.AtKey(err, key)
	}
	return c, nil
}
