package codetemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteStrings(t *testing.T) {
	tmpl := New("t", "Tensor ${Type}::$name() const;")
	got, err := tmpl.Substitute(Env{"Type": "CPUType", "name": "add"})
	require.NoError(t, err)
	assert.Equal(t, "Tensor CPUType::add() const;", got)
}

func TestSubstituteInlineList(t *testing.T) {
	tmpl := New("t", "f(${args})")
	got, err := tmpl.Substitute(Env{"args": []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "f(a, b, c)", got)
}

func TestSubstituteIndentedList(t *testing.T) {
	tmpl := New("t", "void f() {\n  ${body}\n}\n")
	got, err := tmpl.Substitute(Env{"body": []string{"first();", "second();"}})
	require.NoError(t, err)
	assert.Equal(t, "void f() {\n  first();\n  second();\n}\n", got)
}

func TestSubstituteMultilineElements(t *testing.T) {
	tmpl := New("t", "struct S {\n  ${methods}\n};\n")
	got, err := tmpl.Substitute(Env{"methods": []string{"int f() {\n  return 1;\n}", "void g();"}})
	require.NoError(t, err)
	assert.Equal(t, "struct S {\n  int f() {\n    return 1;\n  }\n  void g();\n};\n", got)
}

func TestSubstituteEmptyList(t *testing.T) {
	tmpl := New("t", "{\n  ${lines}\n}\n")
	got, err := tmpl.Substitute(Env{"lines": []string{}})
	require.NoError(t, err)
	assert.Equal(t, "{\n\n}\n", got)
}

func TestSubstituteDollarEscape(t *testing.T) {
	tmpl := New("t", "cost: $$${amount}")
	got, err := tmpl.Substitute(Env{"amount": "5"})
	require.NoError(t, err)
	assert.Equal(t, "cost: $5", got)
}

func TestSubstituteMissingKey(t *testing.T) {
	tmpl := New("broken", "${nope}")
	_, err := tmpl.Substitute(Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "broken")
}

func TestSubstituteBadType(t *testing.T) {
	tmpl := New("t", "${x}")
	_, err := tmpl.Substitute(Env{"x": 42})
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	env := Env{"a": "1"}
	clone := env.Clone()
	clone["b"] = "2"
	assert.NotContains(t, env, "b")
	assert.Equal(t, "1", clone["a"])
}
