package jsonpath

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		input  string
		want   any
		wantOK bool
	}{
		{"nested field", "$.a.b", `{"a":{"b":5}}`, 5.0, true},
		{"missing field", "$.a.c", `{"a":{"b":5}}`, nil, false},
		{"literal", "'x'", `{"a":1}`, "x", true},
		{"literal ignores input", "'hello world'", `null`, "hello world", true},
		{"empty literal", "''", `{}`, "", true},
		{"wildcard", "$.items[*]", `{"items":[1,2]}`, []any{1.0, 2.0}, true},
		{"wildcard non-array", "$.items[*]", `{"items":"no"}`, nil, false},
		{"wildcard empty array", "$.items[*]", `{"items":[]}`, []any{}, true},
		{"index", "$.items[1].name", `{"items":[{"name":"a"},{"name":"b"}]}`, "b", true},
		{"index out of range", "$.items[5]", `{"items":[1]}`, nil, false},
		{"index non-array", "$.items[0]", `{"items":{"0":1}}`, nil, false},
		{"field of array", "$.items.name", `{"items":[1]}`, nil, false},
		{"field of scalar", "$.a.b", `{"a":"str"}`, nil, false},
		{"null value", "$.a", `{"a":null}`, nil, false},
		{"null intermediate", "$.a.b", `{"a":null}`, nil, false},
		{"root", "$", `{"a":1}`, map[string]any{"a": 1.0}, true},
		{"boolean false is a value", "$.ok", `{"ok":false}`, false, true},
		{"nested array object", "$.message.content[0].type", `{"message":{"content":[{"type":"text"}]}}`, "text", true},
		{"invalid expression", "a.b", `{"a":{"b":1}}`, nil, false},
		{"projection", "$.items[*].type", `{"items":[{"type":"a"},{"name":"x"},{"type":"b"}]}`, []any{"a", "b"}, true},
		{"projection non-array", "$.items[*].type", `{"items":{"type":"a"}}`, nil, false},
		{"wildcard under index", "$.rows[0].cells[*]", `{"rows":[{"cells":[1]}]}`, []any{1.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Evaluate(tt.expr, decode(t, tt.input))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (value %v)", ok, tt.wantOK, got)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"", ErrSyntax},
		{"a.b", ErrSyntax},
		{"$", nil},
		{"$.", ErrSyntax},
		{"$.a..b", ErrSyntax},
		{"$.a[", ErrSyntax},
		{"$.a]", ErrSyntax},
		{"$.[0]", ErrSyntax},
		{"$.a[x]", ErrSyntax},
		{"$.a[-1]", ErrSyntax},
		{"$.a[0][1]", ErrSyntax},
		{"$.a[*].b", nil},
		{"$.a[*].b[*]", ErrNestedWildcard},
		{"$.a[*]", nil},
		{"'", ErrSyntax},
		{"'ok'", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Compile(tt.expr)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Compile(%q) = %v, want nil", tt.expr, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Compile(%q) = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestExpr_Predicates(t *testing.T) {
	if !MustCompile("$.a[*]").IsWildcard() {
		t.Error("$.a[*] should be a wildcard")
	}
	if MustCompile("$.a[0]").IsWildcard() {
		t.Error("$.a[0] should not be a wildcard")
	}
	if !MustCompile("'x'").IsLiteral() {
		t.Error("'x' should be a literal")
	}
	if got := MustCompile("$.a.b").String(); got != "$.a.b" {
		t.Errorf("String() = %q", got)
	}
}

func TestExpr_Elements(t *testing.T) {
	v := decode(t, `{"content":[{"type":"text","text":"hi"},null,{"type":"tool_use","name":"Read"}]}`)

	elems, ok := MustCompile("$.content[*]").Elements(v)
	if !ok || len(elems) != 3 {
		t.Fatalf("Elements = %v, %v; want 3 elements", elems, ok)
	}
	if elems[1].OK {
		t.Error("null element should not carry a value")
	}
	if !elems[2].OK || elems[2].Value.(map[string]any)["name"] != "Read" {
		t.Errorf("elems[2] = %#v", elems[2])
	}

	elems, ok = MustCompile("$.content[*].type").Elements(v)
	if !ok || len(elems) != 3 {
		t.Fatalf("projected Elements = %v, %v", elems, ok)
	}
	if elems[0].Value != "text" || !elems[0].OK {
		t.Errorf("elems[0] = %#v, want Value=text", elems[0])
	}
	if elems[1].OK {
		t.Error("projection into null element should yield no value")
	}
	if item, _ := elems[2].Item.(map[string]any); item["name"] != "Read" {
		t.Errorf("elems[2].Item = %#v, want the tool_use block", elems[2].Item)
	}

	if _, ok := MustCompile("$.content").Elements(v); ok {
		t.Error("Elements on a non-wildcard expression should report false")
	}
	if _, ok := MustCompile("$.missing[*]").Elements(v); ok {
		t.Error("Elements on a missing array should report false")
	}
}

func TestMustCompile_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustCompile should panic on invalid input")
		}
	}()
	MustCompile("nope")
}

func TestToString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{false, "false"},
		{5.0, "5"},
		{2.5, "2.5"},
		{json.Number("12"), "12"},
		{42, "42"},
		{map[string]any{"a": 1.0}, `{"a":1}`},
		{[]any{"x", 1.0}, `["x",1]`},
	}
	for _, tt := range tests {
		if got := ToString(tt.in); got != tt.want {
			t.Errorf("ToString(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEvaluateString(t *testing.T) {
	v := decode(t, `{"n":3,"s":"x"}`)
	if got, ok := EvaluateString("$.n", v); !ok || got != "3" {
		t.Errorf("EvaluateString($.n) = %q, %v", got, ok)
	}
	if got, ok := EvaluateString("$.missing", v); ok || got != "" {
		t.Errorf("EvaluateString($.missing) = %q, %v", got, ok)
	}
	if _, ok := EvaluateString("bad", v); ok {
		t.Error("invalid expression should yield no value")
	}
}

func FuzzEvaluate(f *testing.F) {
	f.Add("$.a.b", []byte(`{"a":{"b":5}}`))
	f.Add("$.items[*]", []byte(`{"items":[1,2]}`))
	f.Add("$.x[3]", []byte(`[1,2]`))
	f.Add("'lit'", []byte(`null`))

	f.Fuzz(func(t *testing.T, expr string, data []byte) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return
		}
		// Evaluation must be total: no panics for any input.
		_, _ = Evaluate(expr, v)
		_, _ = EvaluateString(expr, v)
	})
}
