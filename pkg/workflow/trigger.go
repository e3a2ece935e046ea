package workflow

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
)

// Trigger is the `on:` block. The three source forms (a bare event
// name, a sequence of event names, and a mapping of event name to
// configuration) all normalize into the same structure: an event
// listed without a body is present with a zero-value configuration,
// which is distinct from an event that is absent entirely.
type Trigger struct {
	Push              *PushEvent
	PullRequest       *PullRequestEvent
	PullRequestTarget *PullRequestEvent
	Schedule          []Cron
	WorkflowCall      *WorkflowCall
	WorkflowDispatch  *WorkflowDispatch
	WorkflowRun       *WorkflowRun

	// Generic holds events without dedicated models, keyed by event
	// name. Most such events accept only an activity-type filter.
	Generic *schema.OrderedMap[*GenericEvent]

	// names preserves source order across all events for marshaling.
	names []string
}

// Names returns every triggering event name in source order.
func (t *Trigger) Names() []string {
	return t.names
}

// Has reports whether the named event triggers the workflow.
func (t *Trigger) Has(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// MarshalYAML renders the canonical mapping form, preserving source
// order. Events configured by bare listing render with null bodies.
func (t *Trigger) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range t.names {
		var body any
		switch name {
		case "push":
			body = t.Push
		case "pull_request":
			body = t.PullRequest
		case "pull_request_target":
			body = t.PullRequestTarget
		case "schedule":
			body = t.Schedule
		case "workflow_call":
			body = t.WorkflowCall
		case "workflow_dispatch":
			body = t.WorkflowDispatch
		case "workflow_run":
			body = t.WorkflowRun
		default:
			body, _ = t.Generic.Get(name)
		}

		keyNode := &yaml.Node{}
		if err := keyNode.Encode(name); err != nil {
			return nil, err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(body); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}

func decodeTrigger(d *schema.Decoder, n *yaml.Node) (*Trigger, error) {
	n = schema.Resolve(n)
	if n == nil {
		return nil, errors.New(errors.TypeMismatch,
			"expected an event name, sequence, or mapping, found nothing")
	}

	t := &Trigger{Generic: schema.NewOrderedMap[*GenericEvent]()}
	switch n.Kind {
	case yaml.ScalarNode:
		name, err := expr.DecodeString(n)
		if err != nil {
			return nil, err
		}
		return t, t.setEvent(d, name, nil, n)

	case yaml.SequenceNode:
		names, err := expr.DecodeStringSeq(n)
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			if err := t.setEvent(d, name, nil, n.Content[i]); err != nil {
				return nil, err
			}
		}
		return t, nil

	case yaml.MappingNode:
		m, err := d.Mapping(n)
		if err != nil {
			return nil, err
		}
		for _, name := range m.Keys() {
			if err := t.setEvent(d, name, m.Get(name), m.KeyNode(name)); err != nil {
				return nil, err
			}
		}
		return t, nil

	default:
		return nil, errors.New(errors.TypeMismatch,
			"expected an event name, sequence, or mapping, found %s", schema.KindName(n)).
			WithPosition(n.Line, n.Column)
	}
}

// genericEvents is the set of triggering events without dedicated
// models. Names outside this set and the typed events fall under the
// unknown-key policy.
var genericEvents = map[string]bool{
	"branch_protection_rule":      true,
	"check_run":                   true,
	"check_suite":                 true,
	"create":                      true,
	"delete":                      true,
	"deployment":                  true,
	"deployment_status":           true,
	"discussion":                  true,
	"discussion_comment":          true,
	"fork":                        true,
	"gollum":                      true,
	"issue_comment":               true,
	"issues":                      true,
	"label":                       true,
	"merge_group":                 true,
	"milestone":                   true,
	"page_build":                  true,
	"public":                      true,
	"pull_request_review":         true,
	"pull_request_review_comment": true,
	"registry_package":            true,
	"release":                     true,
	"repository_dispatch":         true,
	"status":                      true,
	"watch":                       true,
}

// setEvent records the named event. body is nil for bare listings; pos
// positions duplicate-event errors.
func (t *Trigger) setEvent(d *schema.Decoder, name string, body, pos *yaml.Node) error {
	if t.Has(name) {
		return errors.New(errors.TypeMismatch, "event %q listed more than once", name).
			WithPosition(pos.Line, pos.Column)
	}

	var err error
	switch name {
	case "push":
		t.Push, err = decodePushEvent(d, body)
	case "pull_request":
		t.PullRequest, err = decodePullRequestEvent(d, body)
	case "pull_request_target":
		t.PullRequestTarget, err = decodePullRequestEvent(d, body)
	case "schedule":
		t.Schedule, err = decodeSchedule(d, body)
	case "workflow_call":
		t.WorkflowCall, err = decodeWorkflowCall(d, body)
	case "workflow_dispatch":
		t.WorkflowDispatch, err = decodeWorkflowDispatch(d, body)
	case "workflow_run":
		t.WorkflowRun, err = decodeWorkflowRun(d, body)
	default:
		if !genericEvents[name] {
			// Lenient mode logs and drops the event entirely.
			return d.UnknownKey(name, pos)
		}
		var g *GenericEvent
		g, err = decodeGenericEvent(d, body)
		if err == nil {
			t.Generic.Set(name, g)
		}
	}
	if err != nil {
		return errors.AtKey(err, name)
	}
	t.names = append(t.names, name)
	return nil
}

// PushEvent configures the push trigger. Branch, tag, and path filters
// each come in a positive and an ignore flavor, and each pair is
// mutually exclusive.
type PushEvent struct {
	Branches       []string `yaml:"branches,omitempty"`
	BranchesIgnore []string `yaml:"branches-ignore,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	TagsIgnore     []string `yaml:"tags-ignore,omitempty"`
	Paths          []string `yaml:"paths,omitempty"`
	PathsIgnore    []string `yaml:"paths-ignore,omitempty"`
}

func decodePushEvent(d *schema.Decoder, n *yaml.Node) (*PushEvent, error) {
	e := &PushEvent{}
	if schema.IsNull(n) {
		return e, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if err := exclusiveFilters(m, "branches", "tags", "paths"); err != nil {
		return nil, err
	}

	fields := []struct {
		key string
		dst *[]string
	}{
		{"branches", &e.Branches},
		{"branches-ignore", &e.BranchesIgnore},
		{"tags", &e.Tags},
		{"tags-ignore", &e.TagsIgnore},
		{"paths", &e.Paths},
		{"paths-ignore", &e.PathsIgnore},
	}
	for _, f := range fields {
		if *f.dst, err = decodeStringSeqField(m, f.key); err != nil {
			return nil, err
		}
	}
	return e, m.Finish()
}

// PullRequestEvent configures the pull_request and pull_request_target
// triggers.
type PullRequestEvent struct {
	Types          []string `yaml:"types,omitempty"`
	Branches       []string `yaml:"branches,omitempty"`
	BranchesIgnore []string `yaml:"branches-ignore,omitempty"`
	Paths          []string `yaml:"paths,omitempty"`
	PathsIgnore    []string `yaml:"paths-ignore,omitempty"`
}

func decodePullRequestEvent(d *schema.Decoder, n *yaml.Node) (*PullRequestEvent, error) {
	e := &PullRequestEvent{}
	if schema.IsNull(n) {
		return e, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if err := exclusiveFilters(m, "branches", "paths"); err != nil {
		return nil, err
	}

	fields := []struct {
		key string
		dst *[]string
	}{
		{"types", &e.Types},
		{"branches", &e.Branches},
		{"branches-ignore", &e.BranchesIgnore},
		{"paths", &e.Paths},
		{"paths-ignore", &e.PathsIgnore},
	}
	for _, f := range fields {
		if *f.dst, err = decodeStringSeqField(m, f.key); err != nil {
			return nil, err
		}
	}
	return e, m.Finish()
}

// exclusiveFilters rejects mappings that set both the positive and
// ignore flavor of a filter, which the platform treats as invalid.
func exclusiveFilters(m *schema.Mapping, filters ...string) error {
	for _, f := range filters {
		ignore := f + "-ignore"
		if m.Has(f) && m.Has(ignore) {
			return errors.New(errors.AmbiguousShape,
				"%q and %q are mutually exclusive", f, ignore).
				WithKeys(m.Keys()).
				WithPosition(m.Node().Line, m.Node().Column)
		}
	}
	return nil
}

// Cron is one schedule entry.
type Cron struct {
	// Cron is the POSIX cron expression. Syntax is not validated here.
	Cron string `yaml:"cron"`
}

func decodeSchedule(d *schema.Decoder, n *yaml.Node) ([]Cron, error) {
	if schema.IsNull(n) {
		return nil, errors.New(errors.MissingRequiredField,
			"schedule requires at least one cron entry")
	}
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}

	var crons []Cron
	for i, entry := range seq.Content {
		m, err := d.Mapping(entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		cronNode, err := m.Require("cron")
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		value, err := expr.DecodeString(cronNode)
		if err != nil {
			return nil, errors.AtIndex(errors.AtKey(err, "cron"), i)
		}
		if err := m.Finish(); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		crons = append(crons, Cron{Cron: value})
	}
	return crons, nil
}

// WorkflowCall configures the workflow_call trigger of a reusable
// workflow: its input, output, and secret declarations.
type WorkflowCall struct {
	Inputs  *schema.OrderedMap[*CallInput]  `yaml:"inputs,omitempty"`
	Outputs *schema.OrderedMap[*CallOutput] `yaml:"outputs,omitempty"`
	Secrets *schema.OrderedMap[*CallSecret] `yaml:"secrets,omitempty"`
}

// CallInput declares one reusable workflow input.
type CallInput struct {
	Description string      `yaml:"description,omitempty"`
	Type        string      `yaml:"type,omitempty"`
	Required    expr.Bool   `yaml:"required,omitempty"`
	Default     *expr.Value `yaml:"default,omitempty"`
}

// CallOutput declares one reusable workflow output.
type CallOutput struct {
	Description string     `yaml:"description,omitempty"`
	Value       expr.Value `yaml:"value"`
}

// CallSecret declares one reusable workflow secret.
type CallSecret struct {
	Description string    `yaml:"description,omitempty"`
	Required    expr.Bool `yaml:"required,omitempty"`
}

func decodeWorkflowCall(d *schema.Decoder, n *yaml.Node) (*WorkflowCall, error) {
	wc := &WorkflowCall{}
	if schema.IsNull(n) {
		return wc, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	if inputs := m.Get("inputs"); !schema.IsNull(inputs) {
		im, err := d.Mapping(inputs)
		if err != nil {
			return nil, errors.AtKey(err, "inputs")
		}
		wc.Inputs = schema.NewOrderedMap[*CallInput]()
		err = im.Each(func(name string, value *yaml.Node) error {
			input, err := decodeCallInput(d, value)
			if err != nil {
				return err
			}
			wc.Inputs.Set(name, input)
			return nil
		})
		if err != nil {
			return nil, errors.AtKey(err, "inputs")
		}
	}

	if outputs := m.Get("outputs"); !schema.IsNull(outputs) {
		om, err := d.Mapping(outputs)
		if err != nil {
			return nil, errors.AtKey(err, "outputs")
		}
		wc.Outputs = schema.NewOrderedMap[*CallOutput]()
		err = om.Each(func(name string, value *yaml.Node) error {
			output, err := decodeCallOutput(d, value)
			if err != nil {
				return err
			}
			wc.Outputs.Set(name, output)
			return nil
		})
		if err != nil {
			return nil, errors.AtKey(err, "outputs")
		}
	}

	if secrets := m.Get("secrets"); !schema.IsNull(secrets) {
		sm, err := d.Mapping(secrets)
		if err != nil {
			return nil, errors.AtKey(err, "secrets")
		}
		wc.Secrets = schema.NewOrderedMap[*CallSecret]()
		err = sm.Each(func(name string, value *yaml.Node) error {
			secret, err := decodeCallSecret(d, value)
			if err != nil {
				return err
			}
			wc.Secrets.Set(name, secret)
			return nil
		})
		if err != nil {
			return nil, errors.AtKey(err, "secrets")
		}
	}
	return wc, m.Finish()
}

func decodeCallInput(d *schema.Decoder, n *yaml.Node) (*CallInput, error) {
	in := &CallInput{}
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
	if in.Type, err = optString(m, "type"); err != nil {
		return nil, err
	}
	if in.Required, err = optBool(m, "required"); err != nil {
		return nil, err
	}
	if in.Default, err = optValue(m, "default"); err != nil {
		return nil, err
	}
	return in, m.Finish()
}

func decodeCallOutput(d *schema.Decoder, n *yaml.Node) (*CallOutput, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	out := &CallOutput{}
	if out.Description, err = optString(m, "description"); err != nil {
		return nil, err
	}
	valueNode, err := m.Require("value")
	if err != nil {
		return nil, err
	}
	if out.Value, err = expr.DecodeValue(valueNode); err != nil {
		return nil, errors.AtKey(err, "value")
	}
	return out, m.Finish()
}

func decodeCallSecret(d *schema.Decoder, n *yaml.Node) (*CallSecret, error) {
	s := &CallSecret{}
	if schema.IsNull(n) {
		return s, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if s.Description, err = optString(m, "description"); err != nil {
		return nil, err
	}
	if s.Required, err = optBool(m, "required"); err != nil {
		return nil, err
	}
	return s, m.Finish()
}

// WorkflowDispatch configures the workflow_dispatch trigger.
type WorkflowDispatch struct {
	Inputs *schema.OrderedMap[*DispatchInput] `yaml:"inputs,omitempty"`
}

// DispatchInput declares one manual-run input.
type DispatchInput struct {
	Description string      `yaml:"description,omitempty"`
	Type        string      `yaml:"type,omitempty"`
	Required    expr.Bool   `yaml:"required,omitempty"`
	Default     *expr.Value `yaml:"default,omitempty"`

	// Options lists the values of a choice-typed input.
	Options []string `yaml:"options,omitempty"`
}

func decodeWorkflowDispatch(d *schema.Decoder, n *yaml.Node) (*WorkflowDispatch, error) {
	wd := &WorkflowDispatch{}
	if schema.IsNull(n) {
		return wd, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if inputs := m.Get("inputs"); !schema.IsNull(inputs) {
		im, err := d.Mapping(inputs)
		if err != nil {
			return nil, errors.AtKey(err, "inputs")
		}
		wd.Inputs = schema.NewOrderedMap[*DispatchInput]()
		err = im.Each(func(name string, value *yaml.Node) error {
			input, err := decodeDispatchInput(d, value)
			if err != nil {
				return err
			}
			wd.Inputs.Set(name, input)
			return nil
		})
		if err != nil {
			return nil, errors.AtKey(err, "inputs")
		}
	}
	return wd, m.Finish()
}

func decodeDispatchInput(d *schema.Decoder, n *yaml.Node) (*DispatchInput, error) {
	in := &DispatchInput{}
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
	if in.Type, err = optString(m, "type"); err != nil {
		return nil, err
	}
	if in.Required, err = optBool(m, "required"); err != nil {
		return nil, err
	}
	if in.Default, err = optValue(m, "default"); err != nil {
		return nil, err
	}
	if in.Options, err = decodeStringSeqField(m, "options"); err != nil {
		return nil, err
	}
	return in, m.Finish()
}

// WorkflowRun configures the workflow_run trigger.
type WorkflowRun struct {
	Workflows      []string `yaml:"workflows"`
	Types          []string `yaml:"types,omitempty"`
	Branches       []string `yaml:"branches,omitempty"`
	BranchesIgnore []string `yaml:"branches-ignore,omitempty"`
}

func decodeWorkflowRun(d *schema.Decoder, n *yaml.Node) (*WorkflowRun, error) {
	if schema.IsNull(n) {
		return nil, errors.New(errors.MissingRequiredField,
			"workflow_run requires a workflows list")
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if err := exclusiveFilters(m, "branches"); err != nil {
		return nil, err
	}

	wr := &WorkflowRun{}
	workflowsNode, err := m.Require("workflows")
	if err != nil {
		return nil, err
	}
	if wr.Workflows, err = expr.DecodeStringSeq(workflowsNode); err != nil {
		return nil, errors.AtKey(err, "workflows")
	}
	if wr.Types, err = decodeStringSeqField(m, "types"); err != nil {
		return nil, err
	}
	if wr.Branches, err = decodeStringSeqField(m, "branches"); err != nil {
		return nil, err
	}
	if wr.BranchesIgnore, err = decodeStringSeqField(m, "branches-ignore"); err != nil {
		return nil, err
	}
	return wr, m.Finish()
}

// GenericEvent is the configuration of an event without a dedicated
// model. The activity-type filter is the only key such events share.
type GenericEvent struct {
	Types []string `yaml:"types,omitempty"`
}

func decodeGenericEvent(d *schema.Decoder, n *yaml.Node) (*GenericEvent, error) {
	g := &GenericEvent{}
	if schema.IsNull(n) {
		return g, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if g.Types, err = decodeStringSeqField(m, "types"); err != nil {
		return nil, err
	}
	return g, m.Finish()
}
