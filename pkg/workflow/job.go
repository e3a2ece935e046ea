package workflow

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
	"github.com/tombee/actionschema/pkg/uses"
)

// Job is one entry in the jobs mapping: either a normal job that runs
// steps on a runner, or a call to a reusable workflow. The two shapes
// are discriminated by key presence: `steps` or `runs-on` selects a
// normal job, `uses` selects a reusable call, and a mapping with
// discriminators from both fails as ambiguous rather than guessing.
type Job struct {
	// Name is the job's display name.
	Name string `yaml:"name,omitempty"`

	// Needs lists job ids that must complete first. The scalar
	// shorthand normalizes to a single-element slice.
	Needs []string `yaml:"needs,omitempty"`

	// If gates the job on a condition. Bare conditions count as
	// expressions even without the `${{ }}` fence.
	If *expr.Condition `yaml:"if,omitempty"`

	// Permissions for the job's token, overriding the workflow level.
	Permissions *Permissions `yaml:"permissions,omitempty"`

	// Concurrency limits concurrent runs at the job level.
	Concurrency *Concurrency `yaml:"concurrency,omitempty"`

	// Strategy expands the job across a matrix.
	Strategy *Strategy `yaml:"strategy,omitempty"`

	// Exactly one of Normal and Reusable is set.
	Normal   *NormalJob   `yaml:"-"`
	Reusable *ReusableJob `yaml:"-"`
}

// MarshalYAML flattens the shared fields and the variant's fields into
// one mapping, matching the source layout.
func (j *Job) MarshalYAML() (any, error) {
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
		Name        string          `yaml:"name,omitempty"`
		Needs       []string        `yaml:"needs,omitempty"`
		If          *expr.Condition `yaml:"if,omitempty"`
		Permissions *Permissions    `yaml:"permissions,omitempty"`
		Concurrency *Concurrency    `yaml:"concurrency,omitempty"`
		Strategy    *Strategy       `yaml:"strategy,omitempty"`
	}
	err := merge(header{
		Name:        j.Name,
		Needs:       j.Needs,
		If:          j.If,
		Permissions: j.Permissions,
		Concurrency: j.Concurrency,
		Strategy:    j.Strategy,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case j.Normal != nil:
		err = merge(j.Normal)
	case j.Reusable != nil:
		err = merge(j.Reusable)
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// NormalJob holds the fields specific to a job that runs steps.
type NormalJob struct {
	RunsOn          *RunsOn                        `yaml:"runs-on"`
	Environment     *Environment                   `yaml:"environment,omitempty"`
	Outputs         *expr.Vars                     `yaml:"outputs,omitempty"`
	Env             expr.Env                       `yaml:"env,omitempty"`
	Defaults        *Defaults                      `yaml:"defaults,omitempty"`
	Steps           []*Step                        `yaml:"steps"`
	TimeoutMinutes  *expr.Int                      `yaml:"timeout-minutes,omitempty"`
	ContinueOnError expr.Bool                      `yaml:"continue-on-error,omitempty"`
	Container       *Container                     `yaml:"container,omitempty"`
	Services        *schema.OrderedMap[*Container] `yaml:"services,omitempty"`
}

// ReusableJob holds the fields specific to a reusable workflow call.
type ReusableJob struct {
	// Uses references the called workflow file.
	Uses *uses.Reference `yaml:"uses"`

	// With passes inputs to the called workflow.
	With *expr.Vars `yaml:"with,omitempty"`

	// Secrets passes secrets to the called workflow.
	Secrets *Secrets `yaml:"secrets,omitempty"`
}

var jobVariants = []schema.Variant{
	{Name: "normal", Require: []string{"steps"}},
	{Name: "normal", Require: []string{"runs-on"}},
	{Name: "reusable", Require: []string{"uses"}},
}

func decodeJob(d *schema.Decoder, n *yaml.Node) (*Job, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	variant, err := schema.ResolveVariant(m, "job", jobVariants...)
	if err != nil {
		return nil, err
	}

	j := &Job{}
	if j.Name, err = optString(m, "name"); err != nil {
		return nil, err
	}
	if j.Needs, err = decodeStringSeqField(m, "needs"); err != nil {
		return nil, err
	}
	if j.If, err = optCondition(m, "if"); err != nil {
		return nil, err
	}
	if j.Permissions, err = decodePermissions(d, m.Get("permissions")); err != nil {
		return nil, errors.AtKey(err, "permissions")
	}
	if j.Concurrency, err = decodeConcurrency(d, m.Get("concurrency")); err != nil {
		return nil, errors.AtKey(err, "concurrency")
	}
	if j.Strategy, err = decodeStrategy(d, m.Get("strategy")); err != nil {
		return nil, errors.AtKey(err, "strategy")
	}

	switch variant {
	case "normal":
		j.Normal, err = decodeNormalJob(d, m)
	case "reusable":
		j.Reusable, err = decodeReusableJob(d, m)
	}
	if err != nil {
		return nil, err
	}
	return j, m.Finish()
}

func decodeNormalJob(d *schema.Decoder, m *schema.Mapping) (*NormalJob, error) {
	j := &NormalJob{}

	runsOnNode, err := m.Require("runs-on")
	if err != nil {
		return nil, err
	}
	if j.RunsOn, err = decodeRunsOn(d, runsOnNode); err != nil {
		return nil, errors.AtKey(err, "runs-on")
	}

	if j.Environment, err = decodeEnvironment(d, m.Get("environment")); err != nil {
		return nil, errors.AtKey(err, "environment")
	}
	if outputs := m.Get("outputs"); !schema.IsNull(outputs) {
		if j.Outputs, err = expr.DecodeVars(d, outputs); err != nil {
			return nil, errors.AtKey(err, "outputs")
		}
	}
	if j.Env, err = decodeEnvField(d, m, "env"); err != nil {
		return nil, err
	}
	if j.Defaults, err = decodeDefaults(d, m.Get("defaults")); err != nil {
		return nil, errors.AtKey(err, "defaults")
	}
	if j.TimeoutMinutes, err = optInt(m, "timeout-minutes"); err != nil {
		return nil, err
	}
	if j.ContinueOnError, err = optBool(m, "continue-on-error"); err != nil {
		return nil, err
	}
	if j.Container, err = decodeContainer(d, m.Get("container")); err != nil {
		return nil, errors.AtKey(err, "container")
	}
	if services := m.Get("services"); !schema.IsNull(services) {
		sm, err := d.Mapping(services)
		if err != nil {
			return nil, errors.AtKey(err, "services")
		}
		j.Services = schema.NewOrderedMap[*Container]()
		err = sm.Each(func(name string, value *yaml.Node) error {
			c, err := decodeContainer(d, value)
			if err != nil {
				return err
			}
			j.Services.Set(name, c)
			return nil
		})
		if err != nil {
			return nil, errors.AtKey(err, "services")
		}
	}

	stepsNode, err := m.Require("steps")
	if err != nil {
		return nil, err
	}
	if j.Steps, err = decodeSteps(d, stepsNode); err != nil {
		return nil, errors.AtKey(err, "steps")
	}
	return j, nil
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

func decodeReusableJob(d *schema.Decoder, m *schema.Mapping) (*ReusableJob, error) {
	j := &ReusableJob{}

	usesNode, err := m.Require("uses")
	if err != nil {
		return nil, err
	}
	ref, err := expr.DecodeString(usesNode)
	if err != nil {
		return nil, errors.AtKey(err, "uses")
	}
	if j.Uses, err = uses.ParseReusable(ref); err != nil {
		return nil, errors.AtKey(err, "uses")
	}

	if with := m.Get("with"); !schema.IsNull(with) {
		if j.With, err = expr.DecodeVars(d, with); err != nil {
			return nil, errors.AtKey(err, "with")
		}
	}
	if j.Secrets, err = decodeSecrets(d, m.Get("secrets")); err != nil {
		return nil, errors.AtKey(err, "secrets")
	}
	return j, nil
}

// RunsOn is the runner selection: a label expression, a set of labels,
// or a runner group, normalized from the scalar, sequence, and mapping
// source forms.
type RunsOn struct {
	// Expr is set when the whole field is a single expression.
	Expr *expr.Expr

	// Labels the runner must carry.
	Labels []string

	// Group names a runner group.
	Group string
}

// MarshalYAML renders the simplest form that preserves the selection.
func (r *RunsOn) MarshalYAML() (any, error) {
	switch {
	case r.Expr != nil:
		return r.Expr.Curly(), nil
	case r.Group != "":
		out := map[string]any{"group": r.Group}
		if len(r.Labels) > 0 {
			out["labels"] = r.Labels
		}
		return out, nil
	case len(r.Labels) == 1:
		return r.Labels[0], nil
	default:
		return r.Labels, nil
	}
}

func decodeRunsOn(d *schema.Decoder, n *yaml.Node) (*RunsOn, error) {
	n = schema.Resolve(n)
	if n != nil && n.Kind == yaml.MappingNode {
		m, err := d.Mapping(n)
		if err != nil {
			return nil, err
		}
		r := &RunsOn{}
		if r.Group, err = optString(m, "group"); err != nil {
			return nil, err
		}
		if r.Labels, err = decodeStringSeqField(m, "labels"); err != nil {
			return nil, err
		}
		if r.Group == "" && len(r.Labels) == 0 {
			return nil, errors.New(errors.MissingRequiredField,
				"runner selection requires a group or labels").
				WithPosition(n.Line, n.Column)
		}
		return r, m.Finish()
	}

	// Scalar or sequence of labels; a lone expression selects at runtime.
	if s, err := schema.Scalar(n); err == nil {
		if e, err := expr.Parse(s.Value); err == nil {
			return &RunsOn{Expr: &e}, nil
		}
	}
	labels, err := expr.DecodeStringSeq(n)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.New(errors.MissingRequiredField,
			"runner selection requires at least one label")
	}
	return &RunsOn{Labels: labels}, nil
}

// Environment is a deployment environment reference: a bare name or a
// name with a URL.
type Environment struct {
	Name expr.Value  `yaml:"name"`
	URL  *expr.Value `yaml:"url,omitempty"`
}

func decodeEnvironment(d *schema.Decoder, n *yaml.Node) (*Environment, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	resolved := schema.Resolve(n)
	if resolved.Kind == yaml.ScalarNode {
		name, err := expr.DecodeValue(resolved)
		if err != nil {
			return nil, err
		}
		return &Environment{Name: name}, nil
	}

	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	e := &Environment{}
	nameNode, err := m.Require("name")
	if err != nil {
		return nil, err
	}
	if e.Name, err = expr.DecodeValue(nameNode); err != nil {
		return nil, errors.AtKey(err, "name")
	}
	if e.URL, err = optValue(m, "url"); err != nil {
		return nil, err
	}
	return e, m.Finish()
}

// Strategy expands a job across a matrix.
type Strategy struct {
	// FailFast cancels remaining matrix jobs when one fails. Nil means
	// the platform default (true).
	FailFast *expr.Bool `yaml:"fail-fast,omitempty"`

	// MaxParallel caps concurrently-running matrix jobs.
	MaxParallel *expr.Int `yaml:"max-parallel,omitempty"`

	// Matrix defines the expansion dimensions.
	Matrix *Matrix `yaml:"matrix,omitempty"`
}

func decodeStrategy(d *schema.Decoder, n *yaml.Node) (*Strategy, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	s := &Strategy{}
	if ff := m.Get("fail-fast"); !schema.IsNull(ff) {
		b, err := expr.DecodeBool(ff)
		if err != nil {
			return nil, errors.AtKey(err, "fail-fast")
		}
		s.FailFast = &b
	}
	if s.MaxParallel, err = optInt(m, "max-parallel"); err != nil {
		return nil, err
	}
	if s.Matrix, err = decodeMatrix(d, m.Get("matrix")); err != nil {
		return nil, errors.AtKey(err, "matrix")
	}
	return s, m.Finish()
}

// Matrix is a job matrix: either a single expression producing the
// whole matrix, or named dimensions plus include/exclude rows.
type Matrix struct {
	// Expr is set when the whole matrix is computed by an expression.
	Expr *expr.Expr

	// Dimensions maps each dimension name to its values in source order.
	Dimensions *schema.OrderedMap[[]MatrixValue]

	// Include adds or extends matrix rows.
	Include []*schema.OrderedMap[MatrixValue]

	// Exclude removes matrix rows.
	Exclude []*schema.OrderedMap[MatrixValue]
}

// MarshalYAML renders the expression or the dimension mapping.
func (m *Matrix) MarshalYAML() (any, error) {
	if m.Expr != nil {
		return m.Expr.Curly(), nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	appendPair := func(key string, value any) error {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(value); err != nil {
			return err
		}
		node.Content = append(node.Content, keyNode, valueNode)
		return nil
	}
	if m.Dimensions != nil {
		for _, name := range m.Dimensions.Keys() {
			values, _ := m.Dimensions.Get(name)
			if err := appendPair(name, values); err != nil {
				return nil, err
			}
		}
	}
	if len(m.Include) > 0 {
		if err := appendPair("include", m.Include); err != nil {
			return nil, err
		}
	}
	if len(m.Exclude) > 0 {
		if err := appendPair("exclude", m.Exclude); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// MatrixValue is one matrix cell: a scalar (possibly an expression) or
// a structured value carried through opaquely.
type MatrixValue struct {
	Scalar *expr.Value

	// Structured holds mapping- or sequence-valued cells decoded into
	// plain Go values.
	Structured any
}

// MarshalYAML renders the scalar or the structured value.
func (v MatrixValue) MarshalYAML() (any, error) {
	if v.Scalar != nil {
		return *v.Scalar, nil
	}
	return v.Structured, nil
}

func decodeMatrixValue(n *yaml.Node) (MatrixValue, error) {
	resolved := schema.Resolve(n)
	if resolved != nil && resolved.Kind == yaml.ScalarNode && !schema.IsNull(resolved) {
		v, err := expr.DecodeValue(resolved)
		if err != nil {
			return MatrixValue{}, err
		}
		return MatrixValue{Scalar: &v}, nil
	}
	var structured any
	if err := n.Decode(&structured); err != nil {
		return MatrixValue{}, errors.New(errors.TypeMismatch,
			"invalid matrix value: %v", err).
			WithPosition(n.Line, n.Column)
	}
	return MatrixValue{Structured: structured}, nil
}

func decodeMatrix(d *schema.Decoder, n *yaml.Node) (*Matrix, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	resolved := schema.Resolve(n)

	// The whole matrix may be computed, typically via fromJSON.
	if resolved.Kind == yaml.ScalarNode {
		s, err := schema.Scalar(resolved)
		if err != nil {
			return nil, err
		}
		e, err := expr.Parse(s.Value)
		if err != nil {
			return nil, errors.New(errors.TypeMismatch,
				"expected a mapping or expression, found %q", s.Value).
				WithPosition(s.Line, s.Column)
		}
		return &Matrix{Expr: &e}, nil
	}

	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	matrix := &Matrix{Dimensions: schema.NewOrderedMap[[]MatrixValue]()}
	err = m.Each(func(key string, value *yaml.Node) error {
		switch key {
		case "include":
			matrix.Include, err = decodeMatrixRows(d, value)
			return err
		case "exclude":
			matrix.Exclude, err = decodeMatrixRows(d, value)
			return err
		default:
			values, err := decodeMatrixDimension(value)
			if err != nil {
				return err
			}
			matrix.Dimensions.Set(key, values)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return matrix, nil
}

func decodeMatrixDimension(n *yaml.Node) ([]MatrixValue, error) {
	elems := schema.ScalarOrSeq(n)
	if len(elems) == 0 {
		return nil, errors.New(errors.MissingRequiredField,
			"matrix dimension requires at least one value")
	}
	values := make([]MatrixValue, 0, len(elems))
	for i, e := range elems {
		v, err := decodeMatrixValue(e)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeMatrixRows(d *schema.Decoder, n *yaml.Node) ([]*schema.OrderedMap[MatrixValue], error) {
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}
	var rows []*schema.OrderedMap[MatrixValue]
	for i, entry := range seq.Content {
		m, err := d.Mapping(entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		row := schema.NewOrderedMap[MatrixValue]()
		err = m.Each(func(key string, value *yaml.Node) error {
			v, err := decodeMatrixValue(value)
			if err != nil {
				return err
			}
			row.Set(key, v)
			return nil
		})
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Container is a job or service container: a bare image reference or a
// full configuration.
type Container struct {
	Image       expr.Value            `yaml:"image"`
	Credentials *ContainerCredentials `yaml:"credentials,omitempty"`
	Env         expr.Env              `yaml:"env,omitempty"`
	Ports       []expr.Value          `yaml:"ports,omitempty"`
	Volumes     []string              `yaml:"volumes,omitempty"`
	Options     string                `yaml:"options,omitempty"`
}

// ContainerCredentials authenticates a container registry pull.
type ContainerCredentials struct {
	Username expr.Value `yaml:"username,omitempty"`
	Password expr.Value `yaml:"password,omitempty"`
}

func decodeContainer(d *schema.Decoder, n *yaml.Node) (*Container, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	resolved := schema.Resolve(n)
	if resolved.Kind == yaml.ScalarNode {
		image, err := expr.DecodeValue(resolved)
		if err != nil {
			return nil, err
		}
		return &Container{Image: image}, nil
	}

	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	c := &Container{}
	imageNode, err := m.Require("image")
	if err != nil {
		return nil, err
	}
	if c.Image, err = expr.DecodeValue(imageNode); err != nil {
		return nil, errors.AtKey(err, "image")
	}

	if creds := m.Get("credentials"); !schema.IsNull(creds) {
		cm, err := d.Mapping(creds)
		if err != nil {
			return nil, errors.AtKey(err, "credentials")
		}
		cc := &ContainerCredentials{}
		if username := cm.Get("username"); !schema.IsNull(username) {
			if cc.Username, err = expr.DecodeValue(username); err != nil {
				return nil, errors.AtKey(errors.AtKey(err, "username"), "credentials")
			}
		}
		if password := cm.Get("password"); !schema.IsNull(password) {
			if cc.Password, err = expr.DecodeValue(password); err != nil {
				return nil, errors.AtKey(errors.AtKey(err, "password"), "credentials")
			}
		}
		if err := cm.Finish(); err != nil {
			return nil, errors.AtKey(err, "credentials")
		}
		c.Credentials = cc
	}

	if c.Env, err = decodeEnvField(d, m, "env"); err != nil {
		return nil, err
	}
	if ports := m.Get("ports"); !schema.IsNull(ports) {
		elems := schema.ScalarOrSeq(ports)
		for i, e := range elems {
			v, err := expr.DecodeValue(e)
			if err != nil {
				return nil, errors.AtKey(errors.AtIndex(err, i), "ports")
			}
			c.Ports = append(c.Ports, v)
		}
	}
	if c.Volumes, err = decodeStringSeqField(m, "volumes"); err != nil {
		return nil, err
	}
	if c.Options, err = optString(m, "options"); err != nil {
		return nil, err
	}
	return c, m.Finish()
}

// Secrets passes secrets to a reusable workflow: either the inherit
// shorthand or an explicit mapping.
type Secrets struct {
	// Inherit passes every secret of the caller through.
	Inherit bool

	// Vars passes named secrets; nil when Inherit is set.
	Vars *expr.Vars
}

// MarshalYAML renders the inherit shorthand or the mapping.
func (s *Secrets) MarshalYAML() (any, error) {
	if s.Inherit {
		return "inherit", nil
	}
	return s.Vars, nil
}

func decodeSecrets(d *schema.Decoder, n *yaml.Node) (*Secrets, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	resolved := schema.Resolve(n)
	if resolved.Kind == yaml.ScalarNode {
		if resolved.Value != "inherit" {
			return nil, errors.New(errors.TypeMismatch,
				"expected \"inherit\" or a mapping, found %q", resolved.Value).
				WithPosition(resolved.Line, resolved.Column)
		}
		return &Secrets{Inherit: true}, nil
	}
	vars, err := expr.DecodeVars(d, n)
	if err != nil {
		return nil, err
	}
	return &Secrets{Vars: vars}, nil
}
