package expr

import (
	"testing"

	"github.com/tombee/actionschema/pkg/errors"
)

func TestDecodeCondition(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		isExpr bool
		str    string
	}{
		{name: "fenced", yaml: "${{ failure() }}", isExpr: true, str: "${{ failure() }}"},
		// The runner evaluates bare conditions too, so the fence is
		// optional for classification.
		{name: "bare call", yaml: "success()", isExpr: true, str: "success()"},
		{name: "bare comparison", yaml: "github.ref == 'refs/heads/main'", isExpr: true, str: "github.ref == 'refs/heads/main'"},
		{name: "true literal", yaml: "true", isExpr: false, str: "true"},
		{name: "false literal", yaml: "false", isExpr: false, str: "false"},
		{name: "quoted bool is expression text", yaml: `"true"`, isExpr: true, str: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeCondition(parseNode(t, tt.yaml))
			if err != nil {
				t.Fatalf("DecodeCondition: %v", err)
			}
			if c.IsExpr() != tt.isExpr {
				t.Errorf("IsExpr() = %v, want %v", c.IsExpr(), tt.isExpr)
			}
			if c.AsString() != tt.str {
				t.Errorf("AsString() = %q, want %q", c.AsString(), tt.str)
			}
		})
	}
}

func TestDecodeConditionRejectsStructures(t *testing.T) {
	for _, src := range []string{"[a]", "a: b", "~"} {
		_, err := DecodeCondition(parseNode(t, src))
		if errors.KindOf(err) != errors.TypeMismatch {
			t.Errorf("DecodeCondition(%q) kind = %q, want TypeMismatch", src, errors.KindOf(err))
		}
	}
}
