package memocache

import (
	"testing"
)

type searchArgs struct {
	Query  string            `json:"query"`
	Limit  int               `json:"limit,omitempty"`
	Token  string            `json:"-"`
	Filter map[string]string `json:"filter"`
	hidden int
}

func TestKeyPositional(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{4, `[4]`},
		{"a<b>", `["a<b>"]`},
		{[]int{1, 2}, `[[1,2]]`},
		{map[string]int{"b": 2, "a": 1}, `[{"a":1,"b":2}]`},
		{nil, `[null]`},
		{1.5, `[1.5]`},
	}
	for _, tc := range cases {
		got, err := Key(tc.in, nil, false)
		if err != nil {
			t.Fatalf("Key(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Key(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestKeyNamedArguments(t *testing.T) {
	a := searchArgs{
		Query:  "go",
		Token:  "secret",
		Filter: map[string]string{"z": "1", "a": "2"},
		hidden: 7,
	}
	got, err := Key(a, nil, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	// omitempty and unexported fields still do not matter; json:"-" never keys
	want := `{"filter":{"a":"2","z":"1"},"limit":0,"query":"go"}`
	if got != want {
		t.Fatalf("Key = %s, want %s", got, want)
	}

	ptr, err := Key(&a, nil, false)
	if err != nil || ptr != got {
		t.Fatalf("pointer arg key = %s, %v; want %s", ptr, err, got)
	}
}

func TestKeyExclusionByEitherName(t *testing.T) {
	a := searchArgs{Query: "go", Limit: 3}
	b := searchArgs{Query: "go", Limit: 9}

	for _, ex := range []string{"Limit", "limit"} {
		ka, _ := Key(a, []string{ex}, false)
		kb, _ := Key(b, []string{ex}, false)
		if ka != kb {
			t.Fatalf("exclude %q: %s != %s", ex, ka, kb)
		}
	}

	ka, _ := Key(a, nil, false)
	kb, _ := Key(b, nil, false)
	if ka == kb {
		t.Fatalf("keys should differ without exclusion")
	}
}

func TestKeyStableAcrossFieldOrder(t *testing.T) {
	type ab struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	type ba struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	k1, _ := Key(ab{A: 1, B: 2}, nil, false)
	k2, _ := Key(ba{B: 2, A: 1}, nil, false)
	if k1 != k2 {
		t.Fatalf("field order leaked into key: %s vs %s", k1, k2)
	}
}

func TestKeyHashed(t *testing.T) {
	plain, _ := Key(4, nil, false)
	h1, err := Key(4, nil, true)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	h2, _ := Key(4, nil, true)
	if h1 != h2 || len(h1) != 16 || h1 == plain {
		t.Fatalf("hashed key = %q (plain %q)", h1, plain)
	}
}

func TestKeyUnmarshalable(t *testing.T) {
	if _, err := Key(make(chan int), nil, false); err == nil {
		t.Fatalf("expected error for channel argument")
	}
}

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"square":                "square",
		"square_intrinsic":      "square",
		"square_intrinsic_x":    "square_intrinsic_x",
		"_intrinsic":            "",
		"a_intrinsic_intrinsic": "a_intrinsic",
	}
	for in, want := range cases {
		if got := CanonicalName(in); got != want {
			t.Fatalf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyFromJSONMatchesKey(t *testing.T) {
	fromStruct, err := Key(searchArgs{Query: "go", Limit: 2, Token: "x"}, []string{"filter"}, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	fromDoc, err := KeyFromJSON([]byte(`{"limit":2,"query":"go","filter":null}`), []string{"filter"}, false, false)
	if err != nil {
		t.Fatalf("KeyFromJSON: %v", err)
	}
	if fromStruct != fromDoc {
		t.Fatalf("struct key %s != document key %s", fromStruct, fromDoc)
	}

	pos, err := KeyFromJSON([]byte(`4`), nil, false, false)
	if err != nil || pos != `[4]` {
		t.Fatalf("positional = %s, %v", pos, err)
	}
	if _, err := KeyFromJSON([]byte(`{`), nil, false, false); err == nil {
		t.Fatalf("expected error for malformed document")
	}
}

func TestKeyFromJSONMapArgument(t *testing.T) {
	fromMap, err := Key(map[string]int{"a": 1}, nil, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	fromDoc, err := KeyFromJSON([]byte(`{"a":1}`), nil, true, false)
	if err != nil {
		t.Fatalf("KeyFromJSON: %v", err)
	}
	if fromDoc != fromMap || fromDoc != `[{"a":1}]` {
		t.Fatalf("positional document key = %s, map key = %s", fromDoc, fromMap)
	}
}

func TestKeyFromJSONRejectsTrailingData(t *testing.T) {
	for _, doc := range []string{`{"a":1} trailing`, `{"a":1} }`, `4 5`} {
		if k, err := KeyFromJSON([]byte(doc), nil, false, false); err == nil {
			t.Fatalf("KeyFromJSON(%s) = %s, want error", doc, k)
		}
	}
	if _, err := KeyFromJSON([]byte("{\"a\":1}\n"), nil, false, false); err != nil {
		t.Fatalf("trailing whitespace: %v", err)
	}
}

type modelOpts struct {
	Model string
}

type chatCall struct {
	modelOpts
	Prompt string
}

type conn struct{ ID int }

type Common struct {
	Client conn
	Model  string
}

type sharedCall struct {
	Common
	Prompt string
}

type taggedEmbed struct {
	Common `json:"common"`
	Prompt string
}

type shadowCall struct {
	Common
	Model string `json:"model"`
}

type ptrEmbedCall struct {
	*modelOpts
	Prompt string
}

func TestKeyPromotesUnexportedEmbeddedFields(t *testing.T) {
	a, err := Key(chatCall{modelOpts{"gpt-4"}, "hi"}, nil, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, err := Key(chatCall{modelOpts{"claude"}, "hi"}, nil, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if a != `{"Model":"gpt-4","Prompt":"hi"}` {
		t.Fatalf("Key = %s", a)
	}
	if a == b {
		t.Fatalf("embedded field does not take part in key: %s", a)
	}

	withNil, err := Key(ptrEmbedCall{Prompt: "hi"}, nil, false)
	if err != nil || withNil != `{"Prompt":"hi"}` {
		t.Fatalf("nil embedded pointer = %s, %v", withNil, err)
	}
	withPtr, err := Key(ptrEmbedCall{&modelOpts{"m"}, "hi"}, nil, false)
	if err != nil || withPtr != `{"Model":"m","Prompt":"hi"}` {
		t.Fatalf("embedded pointer = %s, %v", withPtr, err)
	}
}

func TestKeyExcludesPromotedFields(t *testing.T) {
	a, err := Key(sharedCall{Common{conn{1}, "m"}, "hi"}, []string{"Client"}, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if a != `{"Model":"m","Prompt":"hi"}` {
		t.Fatalf("Key = %s", a)
	}
	b, _ := Key(sharedCall{Common{conn{2}, "m"}, "hi"}, []string{"Client"}, false)
	if a != b {
		t.Fatalf("excluded promoted field still keys: %s vs %s", a, b)
	}

	whole, _ := Key(sharedCall{Common{conn{1}, "m"}, "hi"}, []string{"Common"}, false)
	if whole != `{"Prompt":"hi"}` {
		t.Fatalf("excluding the embedded struct = %s", whole)
	}
}

func TestKeyEmbeddedFollowsJSONRules(t *testing.T) {
	tagged, _ := Key(taggedEmbed{Common{conn{1}, "m"}, "hi"}, nil, false)
	if tagged != `{"Prompt":"hi","common":{"Client":{"ID":1},"Model":"m"}}` {
		t.Fatalf("tagged embed = %s", tagged)
	}
	// Common.Model is promoted as "Model"; the outer field is "model", so both stay
	shadow, _ := Key(shadowCall{Common{conn{1}, "inner"}, "outer"}, []string{"Client"}, false)
	if shadow != `{"Model":"inner","model":"outer"}` {
		t.Fatalf("shadowed embed = %s", shadow)
	}
}
