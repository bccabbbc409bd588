package rewriter

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowtrace/internal/policy"
	"flowtrace/pkg/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

const sampleSource = `package sample

func Add(a, b int) int {
	return a + b
}
`

func TestTransformFileInsertsPrologueAndEpilogue(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)
	r := New(p, testLogger())

	out, results, err := r.TransformFile("sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Transformed)

	src := string(out)
	assert.Contains(t, src, "ftagent.Enter(")
	assert.Contains(t, src, "__ft_ctx.Exit(")
	assert.Contains(t, src, "__ft_ctx.Exception(")
	assert.Contains(t, src, "recover()")
	assert.Contains(t, src, "__ft_ret0")
}

const sampleNamedReturn = `package sample

func Divide(a, b int) (result int, err error) {
	if b == 0 {
		return 0, nil
	}
	return a / b, nil
}
`

func TestTransformFilePreservesExistingNames(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)
	r := New(p, testLogger())

	out, _, err := r.TransformFile("sample.go", []byte(sampleNamedReturn))
	require.NoError(t, err)

	src := string(out)
	assert.Contains(t, src, `Name: "result"`)
	assert.Contains(t, src, `Name: "err"`)
	assert.NotContains(t, src, "__ft_ret0")
}

const sampleNestedFuncLit = `package sample

func Outer() int {
	f := func() int {
		return 1
	}
	return f() + 1
}
`

func TestTransformFileDoesNotRewriteNestedFuncLitReturns(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)
	r := New(p, testLogger())

	out, _, err := r.TransformFile("sample.go", []byte(sampleNestedFuncLit))
	require.NoError(t, err)

	src := string(out)
	// The outer function's return is rewritten; the literal's own
	// "return 1" must remain unmodified, not split into an assignment.
	assert.Contains(t, src, "return 1")
}

func TestTransformFileSkipsTestFiles(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)
	r := New(p, testLogger())

	out, results, err := r.TransformFile("sample_test.go", []byte(sampleSource))
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, sampleSource, string(out))
}

func TestTransformFileSkipsExcludedUnit(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{Exclude: []string{"sample.Add"}}, "", testLogger())
	require.NoError(t, err)
	r := New(p, testLogger())

	out, results, err := r.TransformFile("sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "policy_excluded", results[0].SkipReason)
	assert.Equal(t, sampleSource, string(out))
}
