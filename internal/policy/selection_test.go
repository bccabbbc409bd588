package policy

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowtrace/pkg/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestEvaluateEmptyIncludeAcceptsAll(t *testing.T) {
	sp, err := New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)

	assert.True(t, sp.Evaluate("myapp/billing.Invoice"))
}

func TestEvaluateExcludeWinsOverInclude(t *testing.T) {
	sp, err := New(types.SelectionPolicyConfig{
		Include: []string{"myapp/**"},
		Exclude: []string{"myapp/internal/**"},
	}, "", testLogger())
	require.NoError(t, err)

	assert.True(t, sp.Evaluate("myapp/billing.Invoice"))
	assert.False(t, sp.Evaluate("myapp/internal/cache.Get"))
}

func TestBuiltinExcludeAlwaysWins(t *testing.T) {
	sp, err := New(types.SelectionPolicyConfig{
		Include: []string{"**"},
	}, "", testLogger())
	require.NoError(t, err)

	assert.False(t, sp.Evaluate("runtime.gopanic"))
	assert.False(t, sp.Evaluate("myapp/billing.TestInvoice"))
}

func TestPackagePrefixSeedsInclude(t *testing.T) {
	sp, err := New(types.SelectionPolicyConfig{}, "myapp/billing", testLogger())
	require.NoError(t, err)

	assert.True(t, sp.Evaluate("myapp/billing.Invoice"))
	assert.False(t, sp.Evaluate("myapp/shipping.Label"))
}

func TestSelectionMonotonicity(t *testing.T) {
	base, err := New(types.SelectionPolicyConfig{Include: []string{"myapp/**"}}, "", testLogger())
	require.NoError(t, err)

	withExclude, err := New(types.SelectionPolicyConfig{
		Include: []string{"myapp/**"},
		Exclude: []string{"myapp/billing/**"},
	}, "", testLogger())
	require.NoError(t, err)

	units := []string{"myapp/billing/invoice.Create", "myapp/shipping/label.Print"}
	for _, u := range units {
		if withExclude.Evaluate(u) {
			assert.True(t, base.Evaluate(u), "adding an exclude pattern must never instrument a unit the base policy rejected: %s", u)
		}
	}
}

func TestEvaluateFileSkipsTestsAndGenerated(t *testing.T) {
	sp, err := New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)

	opts := FileOptions{SkipGeneratedFiles: true, SkipTestFiles: true}

	assert.False(t, sp.EvaluateFile("foo_test.go", []byte("package foo"), opts))
	assert.False(t, sp.EvaluateFile("foo.go", []byte("// Code generated by protoc-gen-go. DO NOT EDIT.\npackage foo"), opts))
	assert.True(t, sp.EvaluateFile("foo.go", []byte("package foo"), opts))
}
