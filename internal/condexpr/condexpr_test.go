package condexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalVar(t *testing.T) {
	tests := []struct {
		name  string
		cond  string
		value float64
		want  bool
	}{
		{"gte pass", "value >= 0.20", 0.25, true},
		{"gte boundary", "value >= 0.20", 0.20, true},
		{"gte fail", "value >= 0.20", 0.19, false},
		{"lt pass", "value < 0.40", 0.20, true},
		{"eq", "value == 0", 0, true},
		{"neq", "value != 0", 0, false},
		{"chained in range", "0 <= value < 0.10", 0.05, true},
		{"chained below range", "0 <= value < 0.10", -0.01, false},
		{"chained at upper bound", "0 <= value < 0.10", 0.10, false},
		{"arithmetic left side", "value * 100 >= 15", 0.18, true},
		{"arithmetic both sides", "value - 0.05 > 0.1 + 0.02", 0.2, true},
		{"negative literal", "value > -0.05", -0.01, true},
		{"and both true", "value > 0 and value < 1", 0.5, true},
		{"and one false", "value > 0 and value < 1", 1.5, false},
		{"or", "value < 0 or value > 1", 1.5, true},
		{"not", "not value > 0.5", 0.3, true},
		{"symbolic and", "value > 0 && value < 1", 0.5, true},
		{"symbolic or", "value < 0 || value > 1", -1, true},
		{"parens", "(value > 0.5 or value < 0.1) and value != 0.05", 0.7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalVar(tt.cond, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalNamespace(t *testing.T) {
	ns := map[string]float64{
		"pe_ratio":    55,
		"revenue_yoy": -0.02,
		"roe":         0.18,
	}

	got, err := Eval("pe_ratio > 50 and revenue_yoy < 0", ns)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Eval("roe >= 0.20", ns)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalUndefinedVariable(t *testing.T) {
	_, err := Eval("gross_margin > 0.4", map[string]float64{"roe": 0.2})
	require.Error(t, err)
	assert.True(t, IsUndefinedVariable(err))

	// Short-circuit keeps a missing metric on the right side from
	// surfacing when the left side already decides the outcome.
	got, err := Eval("roe > 0.5 and gross_margin > 0.4", map[string]float64{"roe": 0.2})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		cond string
	}{
		{"empty", ""},
		{"trailing operator", "value >="},
		{"single equals", "value = 1"},
		{"unbalanced paren", "(value > 1"},
		{"garbage character", "value > 1 @"},
		{"call syntax rejected", "abs(value) > 1"},
		{"keyword as operand", "value > and"},
		{"bad number", "value > 1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.cond)
			assert.Error(t, err)
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := EvalVar("1 / value > 2", 0)
	require.Error(t, err)
	assert.False(t, IsUndefinedVariable(err))
}

func TestExprVars(t *testing.T) {
	e, err := Parse("pe_ratio > 50 and revenue_yoy < 0 or pe_ratio < 5")
	require.NoError(t, err)
	assert.Equal(t, []string{"pe_ratio", "revenue_yoy"}, e.Vars())
}

func TestEvalMatchesParsedExpr(t *testing.T) {
	ns := map[string]float64{"value": 0.6, "roe": 0.28}
	for _, cond := range []string{
		"value >= 0.5",
		"value",
		"value - 0.6",
		"roe * 100 >= 15 and value < 1",
	} {
		e, err := Parse(cond)
		require.NoError(t, err, cond)
		want, err := e.Eval(ns)
		require.NoError(t, err, cond)

		got, err := Eval(cond, ns)
		require.NoError(t, err, cond)
		assert.Equal(t, want, got, cond)
	}
}

func TestExprReuse(t *testing.T) {
	e, err := Parse("value >= 0.15")
	require.NoError(t, err)

	for _, v := range []float64{0.10, 0.15, 0.30} {
		got, err := e.Eval(map[string]float64{"value": v})
		require.NoError(t, err)
		assert.Equal(t, v >= 0.15, got)
	}
}
