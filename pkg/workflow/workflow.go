// Package workflow provides typed data models for workflow documents.
//
// The models resolve the source format's union-heavy, loosely-typed
// surface into a precise tree that linters and analyzers can traverse
// safely: tagged unions are discriminated by key presence, shorthand
// forms are normalized into canonical ones, and malformed input
// surfaces as structured errors rather than silent misparses.
//
// Parsing is all-or-nothing: ParseWorkflow either returns a fully-typed
// document or an error; no partially-constructed document escapes.
package workflow

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
)

// Workflow is a single workflow document.
type Workflow struct {
	// Name is the workflow's display name (optional).
	Name string `yaml:"name,omitempty"`

	// RunName is the display name for runs of this workflow (optional).
	RunName string `yaml:"run-name,omitempty"`

	// On is the triggering condition or conditions (required).
	On *Trigger `yaml:"on"`

	// Permissions for the workflow's token. Nil means the platform
	// default.
	Permissions *Permissions `yaml:"permissions,omitempty"`

	// Env is the workflow-level environment block.
	Env expr.Env `yaml:"env,omitempty"`

	// Defaults apply to every run step in the workflow.
	Defaults *Defaults `yaml:"defaults,omitempty"`

	// Concurrency limits concurrent runs of this workflow.
	Concurrency *Concurrency `yaml:"concurrency,omitempty"`

	// Jobs is the job graph, keyed by job id in document order. Job ids
	// are unique by mapping semantics; dependency references in `needs`
	// are not resolved here.
	Jobs *schema.OrderedMap[*Job] `yaml:"jobs"`
}

// ParseWorkflow parses a workflow document from a YAML node tree.
//
// The default policy is strict: unknown keys fail with UnknownKey.
// Pass schema.Lenient to ignore and log them instead.
func ParseWorkflow(node *yaml.Node, opts ...schema.Option) (*Workflow, error) {
	d := schema.NewDecoder(opts...)
	if err := d.CheckDepth(node); err != nil {
		return nil, err
	}

	m, err := d.Mapping(node)
	if err != nil {
		return nil, err
	}

	w := &Workflow{}
	if w.Name, err = optString(m, "name"); err != nil {
		return nil, err
	}
	if w.RunName, err = optString(m, "run-name"); err != nil {
		return nil, err
	}

	on, err := m.Require("on")
	if err != nil {
		return nil, err
	}
	if w.On, err = decodeTrigger(d, on); err != nil {
		return nil, errors.AtKey(err, "on")
	}

	if w.Permissions, err = decodePermissions(d, m.Get("permissions")); err != nil {
		return nil, errors.AtKey(err, "permissions")
	}
	if w.Env, err = decodeEnvField(d, m, "env"); err != nil {
		return nil, err
	}
	if w.Defaults, err = decodeDefaults(d, m.Get("defaults")); err != nil {
		return nil, errors.AtKey(err, "defaults")
	}
	if w.Concurrency, err = decodeConcurrency(d, m.Get("concurrency")); err != nil {
		return nil, errors.AtKey(err, "concurrency")
	}

	jobsNode, err := m.Require("jobs")
	if err != nil {
		return nil, err
	}
	if w.Jobs, err = decodeJobs(d, jobsNode); err != nil {
		return nil, errors.AtKey(err, "jobs")
	}

	if err := m.Finish(); err != nil {
		return nil, err
	}
	return w, nil
}

func decodeJobs(d *schema.Decoder, n *yaml.Node) (*schema.OrderedMap[*Job], error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, errors.New(errors.MissingRequiredField,
			"jobs must define at least one job").
			WithPosition(m.Node().Line, m.Node().Column)
	}

	jobs := schema.NewOrderedMap[*Job]()
	err = m.Each(func(id string, value *yaml.Node) error {
		job, err := decodeJob(d, value)
		if err != nil {
			return err
		}
		jobs.Set(id, job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Defaults holds workflow- or job-level default settings.
type Defaults struct {
	// Run holds defaults for run steps.
	Run *RunDefaults `yaml:"run,omitempty"`
}

// RunDefaults holds default settings for run steps.
type RunDefaults struct {
	// Shell is the default shell.
	Shell string `yaml:"shell,omitempty"`

	// WorkingDirectory is the default working directory.
	WorkingDirectory string `yaml:"working-directory,omitempty"`
}

func decodeDefaults(d *schema.Decoder, n *yaml.Node) (*Defaults, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	defaults := &Defaults{}
	if runNode := m.Get("run"); !schema.IsNull(runNode) {
		rm, err := d.Mapping(runNode)
		if err != nil {
			return nil, errors.AtKey(err, "run")
		}
		run := &RunDefaults{}
		if run.Shell, err = optString(rm, "shell"); err != nil {
			return nil, errors.AtKey(err, "run")
		}
		if run.WorkingDirectory, err = optString(rm, "working-directory"); err != nil {
			return nil, errors.AtKey(err, "run")
		}
		if err := rm.Finish(); err != nil {
			return nil, errors.AtKey(err, "run")
		}
		defaults.Run = run
	}
	if err := m.Finish(); err != nil {
		return nil, err
	}
	return defaults, nil
}

// Concurrency limits concurrent runs within a group. The bare form
// `concurrency: my-group` normalizes to a group with default
// cancellation.
type Concurrency struct {
	// Group names the concurrency group.
	Group expr.Value `yaml:"group"`

	// CancelInProgress cancels in-flight runs of the same group when a
	// new run starts.
	CancelInProgress expr.Bool `yaml:"cancel-in-progress,omitempty"`
}

func decodeConcurrency(d *schema.Decoder, n *yaml.Node) (*Concurrency, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	n = schema.Resolve(n)

	// Bare form: the scalar is the group name.
	if n.Kind == yaml.ScalarNode {
		group, err := expr.DecodeValue(n)
		if err != nil {
			return nil, err
		}
		return &Concurrency{Group: group}, nil
	}

	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	c := &Concurrency{}
	groupNode, err := m.Require("group")
	if err != nil {
		return nil, err
	}
	if c.Group, err = expr.DecodeValue(groupNode); err != nil {
		return nil, errors.AtKey(err, "group")
	}
	if cancel := m.Get("cancel-in-progress"); !schema.IsNull(cancel) {
		if c.CancelInProgress, err = expr.DecodeBool(cancel); err != nil {
			return nil, errors.AtKey(err, "cancel-in-progress")
		}
	}
	if err := m.Finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// optString reads an optional loosely-typed string field. Absent and
// explicitly-null keys yield the empty string.
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

// optValue reads an optional permissive scalar field.
func optValue(m *schema.Mapping, key string) (*expr.Value, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return nil, nil
	}
	v, err := expr.DecodeValue(n)
	if err != nil {
		return nil, errors.AtKey(err, key)
	}
	return &v, nil
}

// optCondition reads an optional if-gate field.
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

// optInt reads an optional integer-or-expression field.
func optInt(m *schema.Mapping, key string) (*expr.Int, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return nil, nil
	}
	i, err := expr.DecodeInt(n)
	if err != nil {
		return nil, errors.AtKey(err, key)
	}
	return &i, nil
}

// optBool reads an optional boolean-or-expression field, defaulting to
// a false literal.
func optBool(m *schema.Mapping, key string) (expr.Bool, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return expr.Bool{}, nil
	}
	b, err := expr.DecodeBool(n)
	if err != nil {
		return expr.Bool{}, errors.AtKey(err, key)
	}
	return b, nil
}

// decodeEnvField reads an optional environment block field.
func decodeEnvField(d *schema.Decoder, m *schema.Mapping, key string) (expr.Env, error) {
	n := m.Get(key)
	env, err := expr.DecodeEnv(d, n)
	if err != nil {
		return expr.Env{}, errors.AtKey(err, key)
	}
	return env, nil
}

// decodeStringSeqField reads an optional scalar-or-sequence string field.
func decodeStringSeqField(m *schema.Mapping, key string) ([]string, error) {
	n := m.Get(key)
	if schema.IsNull(n) {
		return nil, nil
	}
	ss, err := expr.DecodeStringSeq(n)
	if err != nil {
		return nil, errors.AtKey(err, key)
	}
	return ss, nil
}
