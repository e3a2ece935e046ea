// Package dependabot provides typed data models for dependabot.yml
// version 2 configuration files.
package dependabot

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
)

// Dependabot is a single dependabot.yml document.
type Dependabot struct {
	// Version is the config schema version; only 2 is supported.
	Version int64 `yaml:"version"`

	// EnableBetaEcosystems opts in to beta ecosystem support.
	EnableBetaEcosystems bool `yaml:"enable-beta-ecosystems,omitempty"`

	// Registries declares private registries, keyed by registry id.
	Registries *schema.OrderedMap[*Registry] `yaml:"registries,omitempty"`

	// Updates configures each tracked ecosystem (required, non-empty).
	Updates []*Update `yaml:"updates"`
}

// Registry is one private registry declaration. Type decides which of
// the credential fields apply; unknown types are rejected.
type Registry struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	Key          string `yaml:"key,omitempty"`
	Token        string `yaml:"token,omitempty"`
	Organization string `yaml:"organization,omitempty"`

	// ReplacesBase replaces the ecosystem's default registry rather
	// than supplementing it.
	ReplacesBase bool `yaml:"replaces-base,omitempty"`
}

// registryTypes is the closed set of registry types dependabot accepts.
var registryTypes = map[string]bool{
	"cargo-registry":      true,
	"composer-repository": true,
	"docker-registry":     true,
	"git":                 true,
	"goproxy-server":      true,
	"hex-organization":    true,
	"hex-repository":      true,
	"maven-repository":    true,
	"npm-registry":        true,
	"nuget-feed":          true,
	"pub-repository":      true,
	"python-index":        true,
	"rubygems-server":     true,
	"terraform-registry":  true,
}

// Update configures dependency updates for one ecosystem and directory
// set.
type Update struct {
	// PackageEcosystem names the package manager (required).
	PackageEcosystem string `yaml:"package-ecosystem"`

	// Directories lists manifest locations. The singular `directory`
	// shorthand normalizes to a one-element list; setting both forms
	// is an error.
	Directories []string `yaml:"directories"`

	// Schedule controls update timing (required).
	Schedule *Schedule `yaml:"schedule"`

	// Allow restricts which dependencies are updated.
	Allow []*Allow `yaml:"allow,omitempty"`

	// Ignore excludes dependencies or versions from updates.
	Ignore []*Ignore `yaml:"ignore,omitempty"`

	// Groups batches updates into shared pull requests, keyed by group
	// name.
	Groups *schema.OrderedMap[*Group] `yaml:"groups,omitempty"`

	// Registries lists registry ids this update may use; "*" allows all.
	Registries []string `yaml:"registries,omitempty"`

	CommitMessage                 *CommitMessage `yaml:"commit-message,omitempty"`
	Labels                        []string       `yaml:"labels,omitempty"`
	Assignees                     []string       `yaml:"assignees,omitempty"`
	TargetBranch                  string         `yaml:"target-branch,omitempty"`
	RebaseStrategy                string         `yaml:"rebase-strategy,omitempty"`
	VersioningStrategy            string         `yaml:"versioning-strategy,omitempty"`
	InsecureExternalCodeExecution string         `yaml:"insecure-external-code-execution,omitempty"`
	OpenPullRequestsLimit         *int64         `yaml:"open-pull-requests-limit,omitempty"`
	Vendor                        bool           `yaml:"vendor,omitempty"`
}

// Schedule controls when updates run.
type Schedule struct {
	// Interval is daily, weekly, monthly, or cron (required).
	Interval string `yaml:"interval"`

	// Day names the weekday for weekly schedules.
	Day string `yaml:"day,omitempty"`

	// Time is the HH:MM time of day.
	Time string `yaml:"time,omitempty"`

	// Timezone is an IANA zone name.
	Timezone string `yaml:"timezone,omitempty"`

	// Cronjob is the cron expression for cron schedules.
	Cronjob string `yaml:"cronjob,omitempty"`
}

// Allow restricts updates to matching dependencies.
type Allow struct {
	DependencyName string `yaml:"dependency-name,omitempty"`
	DependencyType string `yaml:"dependency-type,omitempty"`
}

// Ignore excludes matching dependencies or versions.
type Ignore struct {
	DependencyName string   `yaml:"dependency-name"`
	Versions       []string `yaml:"versions,omitempty"`
	UpdateTypes    []string `yaml:"update-types,omitempty"`
}

// Group batches related dependencies into one pull request.
type Group struct {
	AppliesTo       string   `yaml:"applies-to,omitempty"`
	DependencyType  string   `yaml:"dependency-type,omitempty"`
	Patterns        []string `yaml:"patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude-patterns,omitempty"`
	UpdateTypes     []string `yaml:"update-types,omitempty"`
}

// CommitMessage customizes update commit messages.
type CommitMessage struct {
	Prefix            string `yaml:"prefix,omitempty"`
	PrefixDevelopment string `yaml:"prefix-development,omitempty"`
	Include           string `yaml:"include,omitempty"`
}

// Parse parses a dependabot.yml document from a YAML node tree.
func Parse(node *yaml.Node, opts ...schema.Option) (*Dependabot, error) {
	d := schema.NewDecoder(opts...)
	if err := d.CheckDepth(node); err != nil {
		return nil, err
	}

	m, err := d.Mapping(node)
	if err != nil {
		return nil, err
	}

	db := &Dependabot{}
	versionNode, err := m.Require("version")
	if err != nil {
		return nil, err
	}
	version, err := expr.DecodeInt(versionNode)
	if err != nil {
		return nil, errors.AtKey(err, "version")
	}
	if version.Expr != nil || version.Literal != 2 {
		return nil, errors.AtKey(
			errors.New(errors.TypeMismatch, "only version 2 is supported").
				WithPosition(versionNode.Line, versionNode.Column),
			"version")
	}
	db.Version = version.Literal

	if beta := m.Get("enable-beta-ecosystems"); !schema.IsNull(beta) {
		b, err := expr.DecodeBool(beta)
		if err != nil {
			return nil, errors.AtKey(err, "enable-beta-ecosystems")
		}
		if b.Expr != nil {
			return nil, errors.AtKey(
				errors.New(errors.TypeMismatch, "expressions are not allowed here").
					WithPosition(beta.Line, beta.Column),
				"enable-beta-ecosystems")
		}
		db.EnableBetaEcosystems = b.Literal
	}

	if registries := m.Get("registries"); !schema.IsNull(registries) {
		if db.Registries, err = decodeRegistries(d, registries); err != nil {
			return nil, errors.AtKey(err, "registries")
		}
	}

	updatesNode, err := m.Require("updates")
	if err != nil {
		return nil, err
	}
	if db.Updates, err = decodeUpdates(d, updatesNode); err != nil {
		return nil, errors.AtKey(err, "updates")
	}

	if err := m.Finish(); err != nil {
		return nil, err
	}
	return db, nil
}

func decodeRegistries(d *schema.Decoder, n *yaml.Node) (*schema.OrderedMap[*Registry], error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	registries := schema.NewOrderedMap[*Registry]()
	err = m.Each(func(id string, value *yaml.Node) error {
		r, err := decodeRegistry(d, value)
		if err != nil {
			return err
		}
		registries.Set(id, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registries, nil
}

func decodeRegistry(d *schema.Decoder, n *yaml.Node) (*Registry, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	r := &Registry{}
	typeNode, err := m.Require("type")
	if err != nil {
		return nil, err
	}
	if r.Type, err = expr.DecodeString(typeNode); err != nil {
		return nil, errors.AtKey(err, "type")
	}
	if !registryTypes[r.Type] {
		return nil, errors.AtKey(
			errors.New(errors.UnrecognizedShape, "unknown registry type %q", r.Type).
				WithPosition(typeNode.Line, typeNode.Column),
			"type")
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"url", &r.URL},
		{"username", &r.Username},
		{"password", &r.Password},
		{"key", &r.Key},
		{"token", &r.Token},
		{"organization", &r.Organization},
	}
	for _, f := range fields {
		if *f.dst, err = optString(m, f.key); err != nil {
			return nil, err
		}
	}
	if rb := m.Get("replaces-base"); !schema.IsNull(rb) {
		b, err := expr.DecodeBool(rb)
		if err != nil {
			return nil, errors.AtKey(err, "replaces-base")
		}
		r.ReplacesBase = b.Literal
	}
	return r, m.Finish()
}

func decodeUpdates(d *schema.Decoder, n *yaml.Node) ([]*Update, error) {
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}
	if len(seq.Content) == 0 {
		return nil, errors.New(errors.MissingRequiredField,
			"updates must contain at least one entry").
			WithPosition(seq.Line, seq.Column)
	}

	updates := make([]*Update, 0, len(seq.Content))
	for i, entry := range seq.Content {
		u, err := decodeUpdate(d, entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func decodeUpdate(d *schema.Decoder, n *yaml.Node) (*Update, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	u := &Update{}
	if u.PackageEcosystem, err = requireString(m, "package-ecosystem"); err != nil {
		return nil, err
	}

	dirKey, dirNode, err := m.Alias("directories", "directory")
	if err != nil {
		return nil, err
	}
	if schema.IsNull(dirNode) {
		return nil, errors.New(errors.MissingRequiredField,
			"missing required key %q", "directory").
			WithPosition(m.Node().Line, m.Node().Column)
	}
	if u.Directories, err = expr.DecodeStringSeq(dirNode); err != nil {
		return nil, errors.AtKey(err, dirKey)
	}

	scheduleNode, err := m.Require("schedule")
	if err != nil {
		return nil, err
	}
	if u.Schedule, err = decodeSchedule(d, scheduleNode); err != nil {
		return nil, errors.AtKey(err, "schedule")
	}

	if allow := m.Get("allow"); !schema.IsNull(allow) {
		if u.Allow, err = decodeAllowList(d, allow); err != nil {
			return nil, errors.AtKey(err, "allow")
		}
	}
	if ignore := m.Get("ignore"); !schema.IsNull(ignore) {
		if u.Ignore, err = decodeIgnoreList(d, ignore); err != nil {
			return nil, errors.AtKey(err, "ignore")
		}
	}
	if groups := m.Get("groups"); !schema.IsNull(groups) {
		if u.Groups, err = decodeGroups(d, groups); err != nil {
			return nil, errors.AtKey(err, "groups")
		}
	}
	if u.Registries, err = stringSeqField(m, "registries"); err != nil {
		return nil, err
	}
	if u.CommitMessage, err = decodeCommitMessage(d, m.Get("commit-message")); err != nil {
		return nil, errors.AtKey(err, "commit-message")
	}
	if u.Labels, err = stringSeqField(m, "labels"); err != nil {
		return nil, err
	}
	if u.Assignees, err = stringSeqField(m, "assignees"); err != nil {
		return nil, err
	}
	if u.TargetBranch, err = optString(m, "target-branch"); err != nil {
		return nil, err
	}
	if u.RebaseStrategy, err = optString(m, "rebase-strategy"); err != nil {
		return nil, err
	}
	if u.VersioningStrategy, err = optString(m, "versioning-strategy"); err != nil {
		return nil, err
	}
	if u.InsecureExternalCodeExecution, err = optString(m, "insecure-external-code-execution"); err != nil {
		return nil, err
	}
	if limit := m.Get("open-pull-requests-limit"); !schema.IsNull(limit) {
		i, err := expr.DecodeInt(limit)
		if err != nil {
			return nil, errors.AtKey(err, "open-pull-requests-limit")
		}
		if i.Expr != nil {
			return nil, errors.AtKey(
				errors.New(errors.TypeMismatch, "expressions are not allowed here").
					WithPosition(limit.Line, limit.Column),
				"open-pull-requests-limit")
		}
		u.OpenPullRequestsLimit = &i.Literal
	}
	if vendor := m.Get("vendor"); !schema.IsNull(vendor) {
		b, err := expr.DecodeBool(vendor)
		if err != nil {
			return nil, errors.AtKey(err, "vendor")
		}
		u.Vendor = b.Literal
	}
	return u, m.Finish()
}

func decodeSchedule(d *schema.Decoder, n *yaml.Node) (*Schedule, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}

	s := &Schedule{}
	if s.Interval, err = requireString(m, "interval"); err != nil {
		return nil, err
	}
	switch s.Interval {
	case "daily", "weekly", "monthly", "quarterly", "semiannually", "yearly", "cron":
	default:
		return nil, errors.AtKey(
			errors.New(errors.TypeMismatch, "unknown schedule interval %q", s.Interval).
				WithPosition(m.Node().Line, m.Node().Column),
			"interval")
	}
	if s.Day, err = optString(m, "day"); err != nil {
		return nil, err
	}
	if s.Time, err = optString(m, "time"); err != nil {
		return nil, err
	}
	if s.Timezone, err = optString(m, "timezone"); err != nil {
		return nil, err
	}
	if s.Cronjob, err = optString(m, "cronjob"); err != nil {
		return nil, err
	}
	if s.Interval == "cron" && s.Cronjob == "" {
		return nil, errors.New(errors.MissingRequiredField,
			"cron schedules require a cronjob expression").
			WithPosition(m.Node().Line, m.Node().Column)
	}
	return s, m.Finish()
}

func decodeAllowList(d *schema.Decoder, n *yaml.Node) ([]*Allow, error) {
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}
	var allows []*Allow
	for i, entry := range seq.Content {
		m, err := d.Mapping(entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		a := &Allow{}
		if a.DependencyName, err = optString(m, "dependency-name"); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if a.DependencyType, err = optString(m, "dependency-type"); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if err := m.Finish(); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		allows = append(allows, a)
	}
	return allows, nil
}

func decodeIgnoreList(d *schema.Decoder, n *yaml.Node) ([]*Ignore, error) {
	seq, err := schema.Sequence(n)
	if err != nil {
		return nil, err
	}
	var ignores []*Ignore
	for i, entry := range seq.Content {
		m, err := d.Mapping(entry)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		ig := &Ignore{}
		if ig.DependencyName, err = requireString(m, "dependency-name"); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if ig.Versions, err = stringSeqField(m, "versions"); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if ig.UpdateTypes, err = stringSeqField(m, "update-types"); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		if err := m.Finish(); err != nil {
			return nil, errors.AtIndex(err, i)
		}
		ignores = append(ignores, ig)
	}
	return ignores, nil
}

func decodeGroups(d *schema.Decoder, n *yaml.Node) (*schema.OrderedMap[*Group], error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	groups := schema.NewOrderedMap[*Group]()
	err = m.Each(func(name string, value *yaml.Node) error {
		gm, err := d.Mapping(value)
		if err != nil {
			return err
		}
		g := &Group{}
		if g.AppliesTo, err = optString(gm, "applies-to"); err != nil {
			return err
		}
		if g.DependencyType, err = optString(gm, "dependency-type"); err != nil {
			return err
		}
		if g.Patterns, err = stringSeqField(gm, "patterns"); err != nil {
			return err
		}
		if g.ExcludePatterns, err = stringSeqField(gm, "exclude-patterns"); err != nil {
			return err
		}
		if g.UpdateTypes, err = stringSeqField(gm, "update-types"); err != nil {
			return err
		}
		if err := gm.Finish(); err != nil {
			return err
		}
		groups.Set(name, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func decodeCommitMessage(d *schema.Decoder, n *yaml.Node) (*CommitMessage, error) {
	if schema.IsNull(n) {
		return nil, nil
	}
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	cm := &CommitMessage{}
	if cm.Prefix, err = optString(m, "prefix"); err != nil {
		return nil, err
	}
	if cm.PrefixDevelopment, err = optString(m, "prefix-development"); err != nil {
		return nil, err
	}
	if cm.Include, err = optString(m, "include"); err != nil {
		return nil, err
	}
	return cm, m.Finish()
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

func stringSeqField(m *schema.Mapping, key string) ([]string, error) {
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
