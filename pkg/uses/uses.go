// Package uses parses `uses:` references: remote actions
// (owner/repo[/subpath]@ref), repository-local actions (./path), Docker
// images (docker://[registry/]image[:tag]), and reusable workflow
// references.
package uses

import (
	"strings"

	"github.com/tombee/actionschema/pkg/errors"
)

// Reference is a parsed `uses:` reference. Exactly one of Remote,
// Local, or Docker is set.
type Reference struct {
	Remote *Remote
	Local  *Local
	Docker *Docker

	raw string
}

// Remote references an action or reusable workflow in another
// repository.
type Remote struct {
	// Owner is the repository owner.
	Owner string

	// Repo is the repository name.
	Repo string

	// Subpath is the path within the repository, empty for the
	// repository root.
	Subpath string

	// Ref is the git reference (tag, branch, or commit SHA).
	Ref string
}

// Local references an action or workflow within the same repository.
type Local struct {
	// Path is the repository-relative path, including the leading "./".
	Path string
}

// Docker references a container image.
type Docker struct {
	// Registry is the image registry host, empty for Docker Hub.
	Registry string

	// Image is the image name.
	Image string

	// Tag is the image tag or digest, empty for the default.
	Tag string
}

// String returns the reference in its original source form.
func (r *Reference) String() string {
	return r.raw
}

// MarshalYAML renders the original source form.
func (r *Reference) MarshalYAML() (any, error) {
	return r.raw, nil
}

// ParseStep parses a step `uses:` reference.
func ParseStep(s string) (*Reference, error) {
	switch {
	case strings.HasPrefix(s, "./"):
		return &Reference{raw: s, Local: &Local{Path: s}}, nil
	case strings.HasPrefix(s, "docker://"):
		d, err := parseDocker(s)
		if err != nil {
			return nil, err
		}
		return &Reference{raw: s, Docker: d}, nil
	default:
		r, err := parseRemote(s)
		if err != nil {
			return nil, err
		}
		return &Reference{raw: s, Remote: r}, nil
	}
}

// ParseReusable parses a reusable workflow `uses:` reference. Reusable
// references must name a workflow file (.yml or .yaml) and cannot be
// Docker images.
func ParseReusable(s string) (*Reference, error) {
	if strings.HasPrefix(s, "docker://") {
		return nil, errors.New(errors.TypeMismatch,
			"invalid reusable workflow reference %q: docker references are not allowed", s)
	}
	ref, err := ParseStep(s)
	if err != nil {
		return nil, err
	}

	path := ""
	if ref.Local != nil {
		path = ref.Local.Path
	} else {
		path = ref.Remote.Subpath
	}
	if !strings.HasSuffix(path, ".yml") && !strings.HasSuffix(path, ".yaml") {
		return nil, errors.New(errors.TypeMismatch,
			"invalid reusable workflow reference %q: must point to a .yml or .yaml file", s)
	}
	return ref, nil
}

func parseRemote(s string) (*Remote, error) {
	path, gitRef, ok := strings.Cut(s, "@")
	if !ok || gitRef == "" {
		return nil, errors.New(errors.TypeMismatch,
			"invalid action reference %q: missing @<ref>", s)
	}

	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, errors.New(errors.TypeMismatch,
			"invalid action reference %q: expected owner/repo[/subpath]@ref", s)
	}
	return &Remote{
		Owner:   segments[0],
		Repo:    segments[1],
		Subpath: strings.Join(segments[2:], "/"),
		Ref:     gitRef,
	}, nil
}

func parseDocker(s string) (*Docker, error) {
	rest := strings.TrimPrefix(s, "docker://")
	if rest == "" {
		return nil, errors.New(errors.TypeMismatch,
			"invalid docker reference %q: missing image", s)
	}

	d := &Docker{}
	// A first segment containing a dot or port is a registry host.
	if host, remainder, ok := strings.Cut(rest, "/"); ok &&
		(strings.ContainsAny(host, ".:") || host == "localhost") {
		d.Registry = host
		rest = remainder
	}

	image, tag, _ := strings.Cut(rest, ":")
	if image == "" {
		return nil, errors.New(errors.TypeMismatch,
			"invalid docker reference %q: missing image", s)
	}
	d.Image = image
	d.Tag = tag
	return d, nil
}
