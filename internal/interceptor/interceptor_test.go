package interceptor

import (
	"errors"
	"reflect"
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

func testInterceptor(t *testing.T) *Interceptor {
	t.Helper()
	p, err := policy.New(types.SelectionPolicyConfig{}, "", testLogger())
	require.NoError(t, err)
	in := New(p, testLogger())
	require.NoError(t, in.Install())
	return in
}

func TestInstallRefusesSecondCall(t *testing.T) {
	in := testInterceptor(t)
	err := in.Install()
	require.Error(t, err)
}

func TestWrapFuncForwardsArgsAndResult(t *testing.T) {
	in := testInterceptor(t)

	add := func(a, b int) int { return a + b }
	wrapped, err := in.WrapFunc("mathutil", "Add", add)
	require.NoError(t, err)

	fn, ok := wrapped.(func(int, int) int)
	require.True(t, ok)
	assert.Equal(t, 8, fn(5, 3))
}

func TestWrapFuncIsIdempotent(t *testing.T) {
	in := testInterceptor(t)
	add := func(a, b int) int { return a + b }

	w1, err := in.WrapFunc("mathutil", "Add", add)
	require.NoError(t, err)
	w2, err := in.WrapFunc("mathutil", "Add", add)
	require.NoError(t, err)

	assert.True(t, reflect.ValueOf(w1) == reflect.ValueOf(w2), "second WrapFunc must return the cached wrapper")
}

func TestWrapFuncReturnsOriginalWhenPolicyRejectsUnit(t *testing.T) {
	p, err := policy.New(types.SelectionPolicyConfig{Exclude: []string{"mathutil.*"}}, "", testLogger())
	require.NoError(t, err)
	in := New(p, testLogger())
	require.NoError(t, in.Install())

	add := func(a, b int) int { return a + b }
	wrapped, err := in.WrapFunc("mathutil", "Add", add)
	require.NoError(t, err)

	fn, ok := wrapped.(func(int, int) int)
	require.True(t, ok)
	assert.Equal(t, 8, fn(5, 3))

	in.mu.Lock()
	_, cached := in.wrapped[reflect.ValueOf(add).Pointer()]
	in.mu.Unlock()
	assert.False(t, cached, "a policy-rejected function must not be cached as wrapped")
}

func TestWrapFuncPropagatesPanicAfterException(t *testing.T) {
	in := testInterceptor(t)
	boom := func() { panic(errors.New("boom")) }

	wrapped, err := in.WrapFunc("svc", "Boom", boom)
	require.NoError(t, err)
	fn := wrapped.(func())

	assert.Panics(t, func() { fn() })
}

type hooks struct {
	OnStart func(name string) error
}

func TestWrapStructReplacesFunctionFields(t *testing.T) {
	in := testInterceptor(t)

	h := &hooks{OnStart: func(name string) error { return nil }}
	wrapped, err := in.WrapStruct("hooks", h)
	require.NoError(t, err)

	w, ok := wrapped.(*hooks)
	require.True(t, ok)
	require.NoError(t, w.OnStart("x"))
	assert.NotNil(t, h.OnStart) // original untouched
}

func TestWrapRecordRecursesOneLevel(t *testing.T) {
	in := testInterceptor(t)

	record := map[string]interface{}{
		"top": func() int { return 1 },
		"nested": map[string]interface{}{
			"inner": func() int { return 2 },
		},
	}
	wrapped, err := in.WrapRecord("mod", record)
	require.NoError(t, err)

	top := wrapped["top"].(func() int)
	assert.Equal(t, 1, top())

	nested := wrapped["nested"].(map[string]interface{})
	inner := nested["inner"].(func() int)
	assert.Equal(t, 2, inner())
}
