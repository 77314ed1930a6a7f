package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEvaluateSimple(t *testing.T) {
	expr, err := Parse(`(gt risk 0.5)`)
	require.NoError(t, err)

	v, err := Evaluate(expr, map[string]Value{"risk": 0.9})
	require.NoError(t, err)
	assert.True(t, v.Pass)

	v, err = Evaluate(expr, map[string]Value{"risk": 0.1})
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Len(t, v.Failed, 1)
}

func TestEvaluateAndOrNot(t *testing.T) {
	expr, err := Parse(`(and (gt risk 0.5) (not (eq verdict "fail")))`)
	require.NoError(t, err)

	v, err := Evaluate(expr, map[string]Value{"risk": 0.9, "verdict": "pass"})
	require.NoError(t, err)
	assert.True(t, v.Pass)

	v, err = Evaluate(expr, map[string]Value{"risk": 0.9, "verdict": "fail"})
	require.NoError(t, err)
	assert.False(t, v.Pass)
}

func TestEvaluateDivzAvoidsDivideByZero(t *testing.T) {
	expr, err := Parse(`(eq (divz numerator denominator) 0)`)
	require.NoError(t, err)

	v, err := Evaluate(expr, map[string]Value{"numerator": 5.0, "denominator": 0.0})
	require.NoError(t, err)
	assert.True(t, v.Pass)
}

func TestEvaluateUnresolvedIdentIsError(t *testing.T) {
	expr, err := Parse(`(gt missing 1)`)
	require.NoError(t, err)
	_, err = Evaluate(expr, map[string]Value{})
	assert.Error(t, err)
}

func TestParseRejectsTrailingInput(t *testing.T) {
	_, err := Parse(`(gt a 1) (gt b 2)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestParseRejectsUnterminatedExpression(t *testing.T) {
	_, err := Parse(`(and (gt a 1)`)
	require.Error(t, err)
}

func TestLoadDocument(t *testing.T) {
	doc := `
plugins:
  - publisher: acme
    name: scanner
    version: 1.0.0
    config:
      threshold: 0.5
policy_expr: "(gt risk 0.5)"
`
	d, expr, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, d.Plugins, 1)
	assert.Equal(t, "acme", d.Plugins[0].Publisher)

	v, err := Evaluate(expr, map[string]Value{"risk": 1.0})
	require.NoError(t, err)
	assert.True(t, v.Pass)
}
