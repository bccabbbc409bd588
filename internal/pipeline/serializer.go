package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Serializer renders call arguments and results into the JSON-encoded
// strings the wire format's `args`/`result` fields carry (§4.4).
//
// Go has no reflective "is this a promise" check the way a dynamic host
// does, so the promise/future placeholder applies to anything satisfying
// the futureLike interface below — a channel-returning accessor is the
// closest stdlib-idiomatic analogue.
type Serializer struct {
	// MaxArgLength caps the serialized length of a single argument value;
	// zero disables the cap.
	MaxArgLength int
}

// NewSerializer builds a Serializer with the given per-argument length cap.
func NewSerializer(maxArgLength int) *Serializer {
	return &Serializer{MaxArgLength: maxArgLength}
}

// Arg is one entry of an ordered parameter list: a prologue passes one Arg
// per declared parameter (plus a synthesized "receiver" entry for methods
// and a single array-valued entry for a variadic parameter).
type Arg struct {
	Name  string
	Value interface{}
}

// SerializeArgs renders an ordered parameter list as the wire format's
// `args` string: a JSON array of single-key objects, one per parameter, in
// declaration order — preserving order the way a bare JSON object cannot.
// Zero parameters serialize to "[]".
func (s *Serializer) SerializeArgs(args []Arg) string {
	if len(args) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		entry := map[string]json.RawMessage{a.Name: json.RawMessage(s.serializeValue(a.Value, map[uintptr]bool{}))}
		raw, err := json.Marshal(entry)
		if err != nil {
			raw = []byte(fmt.Sprintf(`{%q:"<unserializable>"}`, a.Name))
		}
		b.Write(raw)
	}
	b.WriteByte(']')
	return b.String()
}

// SerializeResult renders a single return value, or a map of named returns,
// as the wire format's `result` string.
func (s *Serializer) SerializeResult(value interface{}) string {
	return string(s.serializeValue(value, map[uintptr]bool{}))
}

// serializeValue renders a single Go value to its JSON form, applying the
// placeholder rules for values ordinary json.Marshal cannot represent
// faithfully, and the per-value length cap.
func (s *Serializer) serializeValue(v interface{}, visited map[uintptr]bool) json.RawMessage {
	raw := s.serializeValueUncapped(v, visited)
	return s.applyCap(raw)
}

func (s *Serializer) applyCap(raw json.RawMessage) json.RawMessage {
	if s.MaxArgLength <= 0 || len(raw) <= s.MaxArgLength {
		return raw
	}
	// Only string-shaped values are meaningfully truncatable without
	// producing invalid JSON; re-quote the truncated prefix.
	if len(raw) >= 2 && raw[0] == '"' {
		cut := s.MaxArgLength - 2
		if cut < 0 {
			cut = 0
		}
		inner := string(raw[1 : len(raw)-1])
		if cut < len(inner) {
			inner = inner[:cut]
		}
		quoted, _ := json.Marshal(inner + "...")
		return quoted
	}
	return raw
}

// futureLike is satisfied by any Go value that exposes a channel a result
// will eventually arrive on — FlowTrace's analogue of a promise/future.
type futureLike interface {
	Done() <-chan struct{}
}

func (s *Serializer) serializeValueUncapped(v interface{}, visited map[uintptr]bool) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}

	if err, ok := v.(error); ok {
		return placeholder(fmt.Sprintf("<Error: %s>", err.Error()))
	}
	if _, ok := v.(futureLike); ok {
		return placeholder("<Promise>")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String,
		reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		raw, err := json.Marshal(v)
		if err != nil {
			return placeholder(fmt.Sprintf("<%T>", v))
		}
		return raw

	case reflect.Slice, reflect.Array:
		return s.serializeOrdered(rv, visited)

	case reflect.Map:
		return s.serializeMap(rv, v, visited)

	case reflect.Struct:
		return s.serializeStruct(rv, v, visited)

	case reflect.Ptr:
		if rv.IsNil() {
			return json.RawMessage("null")
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return fallbackRecord(rv.Elem().Interface())
		}
		visited[ptr] = true
		defer delete(visited, ptr)
		return s.serializeValueUncapped(rv.Elem().Interface(), visited)

	case reflect.Interface:
		if rv.IsNil() {
			return json.RawMessage("null")
		}
		return s.serializeValueUncapped(rv.Elem().Interface(), visited)

	case reflect.Func:
		return placeholder(fmt.Sprintf("<function %s>", funcName(rv)))

	case reflect.Chan:
		return placeholder("<channel>")

	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return placeholder(fmt.Sprintf("<%T>", v))
		}
		return raw
	}
}

func (s *Serializer) serializeOrdered(rv reflect.Value, visited map[uintptr]bool) json.RawMessage {
	n := rv.Len()
	elems := make([]json.RawMessage, n)
	for i := 0; i < n; i++ {
		elems[i] = s.serializeValueUncapped(rv.Index(i).Interface(), visited)
	}
	return joinArray(elems)
}

func (s *Serializer) serializeMap(rv reflect.Value, original interface{}, visited map[uintptr]bool) json.RawMessage {
	if rv.IsNil() {
		return json.RawMessage("null")
	}
	ptr := rv.Pointer()
	if visited[ptr] {
		return fallbackRecord(original)
	}
	visited[ptr] = true
	defer delete(visited, ptr)

	keys := rv.MapKeys()
	type kv struct {
		k string
		v json.RawMessage
	}
	pairs := make([]kv, 0, len(keys))
	for _, k := range keys {
		keyStr := fmt.Sprintf("%v", k.Interface())
		pairs = append(pairs, kv{keyStr, s.serializeValueUncapped(rv.MapIndex(k).Interface(), visited)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	var b strings.Builder
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(p.k)
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(p.v)
	}
	b.WriteByte('}')
	return json.RawMessage(b.String())
}

// serializeStruct walks exported fields by hand rather than delegating to
// json.Marshal: a delegated Marshal would dereference any pointer fields
// itself, bypassing the visited set and defeating cycle detection for
// pointer-typed fields. Go structs cannot contain themselves by value, so
// only pointer cycles are possible, and those are caught one field down
// when serializeValueUncapped revisits the Ptr case.
func (s *Serializer) serializeStruct(rv reflect.Value, original interface{}, visited map[uintptr]bool) json.RawMessage {
	t := rv.Type()
	var b strings.Builder
	b.WriteByte('{')
	wrote := false
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
		}
		if wrote {
			b.WriteByte(',')
		}
		wrote = true
		keyJSON, _ := json.Marshal(name)
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(s.serializeValueUncapped(rv.Field(i).Interface(), visited))
	}
	b.WriteByte('}')
	return json.RawMessage(b.String())
}

// fallbackRecord implements the serializer's circular/unstringifiable
// fallback: a placeholder naming the type, or failing that the record's key set.
func fallbackRecord(v interface{}) json.RawMessage {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct {
		t := rv.Type()
		keys := make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				keys = append(keys, t.Field(i).Name)
			}
		}
		raw, _ := json.Marshal(keys)
		return raw
	}
	return placeholder(fmt.Sprintf("<%T>", v))
}

func placeholder(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

func joinArray(elems []json.RawMessage) json.RawMessage {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(e)
	}
	b.WriteByte(']')
	return json.RawMessage(b.String())
}

func funcName(rv reflect.Value) string {
	p := rv.Pointer()
	if p == 0 {
		return "anonymous"
	}
	return fmt.Sprintf("func@%x", p)
}
