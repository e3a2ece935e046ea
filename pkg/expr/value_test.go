package expr

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("parsing test yaml: %v", err)
	}
	return &node
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		kind ValueKind
		str  string
	}{
		{name: "plain string", yaml: "hello", kind: KindString, str: "hello"},
		{name: "quoted number string", yaml: `"42"`, kind: KindString, str: "42"},
		{name: "integer", yaml: "42", kind: KindInt, str: "42"},
		{name: "float", yaml: "3.5", kind: KindFloat, str: "3.5"},
		{name: "bool", yaml: "true", kind: KindBool, str: "true"},
		{name: "expression", yaml: "${{ github.token }}", kind: KindExpr, str: "${{ github.token }}"},
		{name: "embedded expression", yaml: `"v${{ matrix.version }}"`, kind: KindExpr, str: "v${{ matrix.version }}"},
		// Expression classification wins over the natural scalar type.
		{name: "quoted bool-looking expression", yaml: `"${{ true }}"`, kind: KindExpr, str: "${{ true }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeValue(parseNode(t, tt.yaml))
			if err != nil {
				t.Fatalf("DecodeValue: %v", err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("kind = %d, want %d", v.Kind(), tt.kind)
			}
			if v.AsString() != tt.str {
				t.Errorf("AsString() = %q, want %q", v.AsString(), tt.str)
			}
		})
	}
}

func TestDecodeValueRejectsStructures(t *testing.T) {
	for _, src := range []string{"[a, b]", "a: b", "~"} {
		_, err := DecodeValue(parseNode(t, src))
		if errors.KindOf(err) != errors.TypeMismatch {
			t.Errorf("DecodeValue(%q) kind = %q, want TypeMismatch", src, errors.KindOf(err))
		}
	}
}

func TestDecodeBool(t *testing.T) {
	b, err := DecodeBool(parseNode(t, "true"))
	if err != nil || b.Expr != nil || !b.Literal {
		t.Errorf("DecodeBool(true) = %+v, %v", b, err)
	}

	b, err = DecodeBool(parseNode(t, "${{ matrix.experimental }}"))
	if err != nil || b.Expr == nil {
		t.Fatalf("DecodeBool(expr) = %+v, %v", b, err)
	}
	if b.Expr.Inner() != "matrix.experimental" {
		t.Errorf("expr inner = %q", b.Expr.Inner())
	}

	// Strings and numbers are not coerced to booleans.
	for _, src := range []string{`"yes"`, "1", "enabled"} {
		if _, err := DecodeBool(parseNode(t, src)); errors.KindOf(err) != errors.TypeMismatch {
			t.Errorf("DecodeBool(%s) kind = %q, want TypeMismatch", src, errors.KindOf(err))
		}
	}
}

func TestDecodeInt(t *testing.T) {
	i, err := DecodeInt(parseNode(t, "30"))
	if err != nil || i.Expr != nil || i.Literal != 30 {
		t.Errorf("DecodeInt(30) = %+v, %v", i, err)
	}

	if _, err := DecodeInt(parseNode(t, "3.5")); errors.KindOf(err) != errors.TypeMismatch {
		t.Errorf("DecodeInt(3.5) kind = %q, want TypeMismatch", errors.KindOf(err))
	}

	i, err = DecodeInt(parseNode(t, "${{ inputs.timeout }}"))
	if err != nil || i.Expr == nil {
		t.Errorf("DecodeInt(expr) = %+v, %v", i, err)
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		yaml string
		want string
	}{
		{`echo hi`, "echo hi"},
		{`true`, "true"},
		{`3`, "3"},
		{`3.14`, "3.14"},
	}
	for _, tt := range tests {
		got, err := DecodeString(parseNode(t, tt.yaml))
		if err != nil || got != tt.want {
			t.Errorf("DecodeString(%q) = %q, %v; want %q", tt.yaml, got, err, tt.want)
		}
	}
}

func TestDecodeVars(t *testing.T) {
	d := schema.NewDecoder()
	vars, err := DecodeVars(d, parseNode(t, "FOO: bar\nCOUNT: 3\nFLAG: true\n"))
	if err != nil {
		t.Fatalf("DecodeVars: %v", err)
	}

	wantKeys := []string{"FOO", "COUNT", "FLAG"}
	for i, k := range vars.Keys() {
		if k != wantKeys[i] {
			t.Errorf("key %d = %q, want %q", i, k, wantKeys[i])
		}
	}
	if v, _ := vars.Get("COUNT"); v.AsString() != "3" {
		t.Errorf("COUNT = %q, want 3", v.AsString())
	}
}

func TestDecodeEnv(t *testing.T) {
	d := schema.NewDecoder()

	env, err := DecodeEnv(d, parseNode(t, "FOO: bar\n"))
	if err != nil || env.Expr != nil || env.Vars.Len() != 1 {
		t.Errorf("literal env = %+v, %v", env, err)
	}

	env, err = DecodeEnv(d, parseNode(t, "${{ fromJSON(inputs.env) }}"))
	if err != nil || env.Expr == nil {
		t.Errorf("expression env = %+v, %v", env, err)
	}

	if _, err := DecodeEnv(d, parseNode(t, "just a string")); errors.KindOf(err) != errors.TypeMismatch {
		t.Errorf("bare string env kind = %q, want TypeMismatch", errors.KindOf(err))
	}
}
