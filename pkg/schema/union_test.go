package schema

import (
	"testing"

	"github.com/tombee/actionschema/pkg/errors"
)

var stepVariants = []Variant{
	{Name: "run", Require: []string{"run"}},
	{Name: "uses", Require: []string{"uses"}},
}

func TestResolveVariant(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		want     string
		wantKind errors.Kind
	}{
		{
			name: "run step",
			yaml: "run: make test\nshell: bash\n",
			want: "run",
		},
		{
			name: "uses step",
			yaml: "uses: actions/checkout@v4\nwith: {ref: main}\n",
			want: "uses",
		},
		{
			name:     "both discriminators",
			yaml:     "run: make\nuses: actions/checkout@v4\n",
			wantKind: errors.AmbiguousShape,
		},
		{
			name:     "neither discriminator",
			yaml:     "name: empty step\n",
			wantKind: errors.UnrecognizedShape,
		},
		{
			name: "null discriminator still counts as present",
			yaml: "uses:\nwith: {ref: main}\n",
			want: "uses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			m, err := d.Mapping(parseNode(t, tt.yaml))
			if err != nil {
				t.Fatalf("Mapping: %v", err)
			}
			got, err := ResolveVariant(m, "step", stepVariants...)
			if errors.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q, want %q (err: %v)", errors.KindOf(err), tt.wantKind, err)
			}
			if got != tt.want {
				t.Errorf("variant = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveVariantForbid(t *testing.T) {
	// A forbidden key disqualifies a variant even when its required
	// discriminators are present.
	variants := []Variant{
		{Name: "bare", Require: []string{"image"}, Forbid: []string{"credentials"}},
		{Name: "authenticated", Require: []string{"image", "credentials"}},
	}

	d := NewDecoder()
	m, err := d.Mapping(parseNode(t, "image: alpine\ncredentials: {username: u}\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	got, err := ResolveVariant(m, "container", variants...)
	if err != nil {
		t.Fatalf("ResolveVariant: %v", err)
	}
	if got != "authenticated" {
		t.Errorf("variant = %q, want %q", got, "authenticated")
	}
}

func TestResolveVariantAmbiguous(t *testing.T) {
	// Variants whose discriminators genuinely overlap surface
	// AmbiguousShape rather than picking one.
	variants := []Variant{
		{Name: "first", Require: []string{"shared"}},
		{Name: "second", Require: []string{"shared"}},
	}

	d := NewDecoder()
	m, err := d.Mapping(parseNode(t, "shared: 1\n"))
	if err != nil {
		t.Fatalf("Mapping: %v", err)
	}
	_, err = ResolveVariant(m, "node", variants...)
	if errors.KindOf(err) != errors.AmbiguousShape {
		t.Fatalf("kind = %q, want AmbiguousShape", errors.KindOf(err))
	}

	var pe *errors.ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected ParseError")
	}
	if len(pe.Keys) != 1 || pe.Keys[0] != "shared" {
		t.Errorf("keys = %v, want [shared]", pe.Keys)
	}
}
