package interceptor

import (
	"reflect"

	flowtraceerrors "flowtrace/pkg/errors"
)

// WrapStruct wraps every exported, non-reserved, function-typed field of
// a struct pointed to by v, returning a new pointer of the same type with
// those fields replaced by their wrapped equivalents. This is the Go
// translation of §4.2's "constructible type" case: Go cannot monkey-patch
// a method set, but a struct of exported function-typed fields (a common
// pluggable-hooks shape) can have its fields substituted in place.
func (in *Interceptor) WrapStruct(class string, v interface{}) (interface{}, error) {
	if !in.isInstalled() {
		return v, flowtraceerrors.Instrumentation("interceptor", "WrapStruct", "interceptor not installed")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return v, flowtraceerrors.Instrumentation("interceptor", "WrapStruct", "value is not a non-nil struct pointer")
	}

	out := reflect.New(rv.Elem().Type())
	out.Elem().Set(rv.Elem())
	elem := out.Elem()
	t := elem.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || reservedFieldNames[field.Name] {
			continue
		}
		fv := elem.Field(i)
		if fv.Kind() != reflect.Func || fv.IsNil() {
			continue
		}
		wrapped, err := in.WrapFunc(class, field.Name, fv.Interface())
		if err != nil {
			continue
		}
		fv.Set(reflect.ValueOf(wrapped))
	}
	return out.Interface(), nil
}

// WrapRecord wraps every function-valued entry of a plain map export,
// recursing exactly one level into nested maps per §4.2's "plain record
// of mixed values, recurse one level" rule.
func (in *Interceptor) WrapRecord(class string, record map[string]interface{}) (map[string]interface{}, error) {
	if !in.isInstalled() {
		return record, flowtraceerrors.Instrumentation("interceptor", "WrapRecord", "interceptor not installed")
	}
	return in.wrapRecordDepth(class, record, 1), nil
}

func (in *Interceptor) wrapRecordDepth(class string, record map[string]interface{}, depthRemaining int) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for key, value := range record {
		if reservedFieldNames[key] {
			out[key] = value
			continue
		}
		rv := reflect.ValueOf(value)
		switch {
		case rv.IsValid() && rv.Kind() == reflect.Func && !rv.IsNil():
			if wrapped, err := in.WrapFunc(class, key, value); err == nil {
				out[key] = wrapped
				continue
			}
			out[key] = value
		case depthRemaining > 0:
			if nested, ok := value.(map[string]interface{}); ok {
				out[key] = in.wrapRecordDepth(class, nested, depthRemaining-1)
				continue
			}
			out[key] = value
		default:
			out[key] = value
		}
	}
	return out
}
