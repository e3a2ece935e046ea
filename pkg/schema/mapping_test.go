package schema

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
)

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("parsing test yaml: %v", err)
	}
	return &node
}

func TestMappingGetAndRequire(t *testing.T) {
	d := NewDecoder()
	m, err := d.Mapping(parseNode(t, "name: build\nempty:\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}

	if n := m.Get("name"); n == nil || Resolve(n).Value != "build" {
		t.Errorf("Get(name) = %v, want build", n)
	}
	if n := m.Get("missing"); n != nil {
		t.Errorf("Get(missing) = %v, want nil", n)
	}

	// Explicit null is present for Has but fails Require.
	if !m.Has("empty") {
		t.Error("Has(empty) = false, want true")
	}
	if _, err := m.Require("empty"); errors.KindOf(err) != errors.MissingRequiredField {
		t.Errorf("Require(empty) kind = %q, want MissingRequiredField", errors.KindOf(err))
	}
	if _, err := m.Require("missing"); errors.KindOf(err) != errors.MissingRequiredField {
		t.Errorf("Require(missing) kind = %q, want MissingRequiredField", errors.KindOf(err))
	}
}

func TestMappingDuplicateKey(t *testing.T) {
	d := NewDecoder()
	_, err := d.Mapping(parseNode(t, "a: 1\na: 2\n"))
	if errors.KindOf(err) != errors.TypeMismatch {
		t.Fatalf("duplicate key kind = %q, want TypeMismatch", errors.KindOf(err))
	}
}

func TestMappingNotAMapping(t *testing.T) {
	d := NewDecoder()
	_, err := d.Mapping(parseNode(t, "- a\n- b\n"))
	if errors.KindOf(err) != errors.TypeMismatch {
		t.Fatalf("sequence kind = %q, want TypeMismatch", errors.KindOf(err))
	}
}

func TestAliasResolution(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantKind errors.Kind
		wantKey  string
		wantVal  string
	}{
		{
			name:    "canonical only",
			yaml:    "cache-dependency-path: requirements.txt\n",
			wantKey: "cache-dependency-path",
			wantVal: "requirements.txt",
		},
		{
			name:    "alias only resolves to canonical",
			yaml:    "cache-dep-path: requirements.txt\n",
			wantKey: "cache-dep-path",
			wantVal: "requirements.txt",
		},
		{
			name:     "both present conflict",
			yaml:     "cache-dependency-path: a.txt\ncache-dep-path: b.txt\n",
			wantKind: errors.ConflictingAliases,
		},
		{
			name:    "neither present",
			yaml:    "other: x\n",
			wantVal: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			m, err := d.Mapping(parseNode(t, tt.yaml))
			if err != nil {
				t.Fatalf("Mapping: %v", err)
			}
			key, n, err := m.Alias("cache-dependency-path", "cache-dep-path")
			if errors.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q, want %q", errors.KindOf(err), tt.wantKind)
			}
			if tt.wantKind != "" {
				return
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if tt.wantVal == "" {
				if n != nil {
					t.Errorf("value = %v, want nil", n)
				}
				return
			}
			if Resolve(n).Value != tt.wantVal {
				t.Errorf("value = %q, want %q", Resolve(n).Value, tt.wantVal)
			}
		})
	}
}

func TestFinishStrict(t *testing.T) {
	d := NewDecoder()
	m, err := d.Mapping(parseNode(t, "known: 1\nbogus: 2\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	m.Get("known")

	err = m.Finish()
	if errors.KindOf(err) != errors.UnknownKey {
		t.Fatalf("Finish kind = %q, want UnknownKey", errors.KindOf(err))
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q should name the unknown key", err)
	}
}

func TestFinishLenientLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := NewDecoder(Lenient(logger))
	m, err := d.Mapping(parseNode(t, "known: 1\nbogus: 2\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	m.Get("known")

	if err := m.Finish(); err != nil {
		t.Fatalf("lenient Finish returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "bogus") {
		t.Errorf("lenient mode should log the ignored key, got %q", buf.String())
	}
}

func TestEachAnnotatesPath(t *testing.T) {
	d := NewDecoder()
	m, err := d.Mapping(parseNode(t, "first: 1\nsecond: 2\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}

	err = m.Each(func(key string, value *yaml.Node) error {
		if key == "second" {
			return errors.New(errors.TypeMismatch, "boom")
		}
		return nil
	})
	if err == nil || !strings.HasPrefix(err.Error(), "second: ") {
		t.Errorf("Each error = %v, want path prefix 'second: '", err)
	}

	// All keys consumed, Finish passes.
	if err := m.Finish(); err != nil {
		t.Errorf("Finish after Each: %v", err)
	}
}

func TestCheckDepth(t *testing.T) {
	deep := "a: " + strings.Repeat("{a: ", 10) + "1" + strings.Repeat("}", 10)
	d := NewDecoder(WithMaxDepth(5))
	err := d.CheckDepth(parseNode(t, deep))
	if errors.KindOf(err) != errors.TooDeeplyNested {
		t.Fatalf("deep input kind = %q, want TooDeeplyNested", errors.KindOf(err))
	}

	if err := NewDecoder().CheckDepth(parseNode(t, deep)); err != nil {
		t.Errorf("default depth guard rejected shallow input: %v", err)
	}
}
