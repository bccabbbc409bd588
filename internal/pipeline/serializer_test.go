package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeArgsOrderedAndEmpty(t *testing.T) {
	s := NewSerializer(0)
	assert.Equal(t, "[]", s.SerializeArgs(nil))
	assert.Equal(t, `[{"name":"John"}]`, s.SerializeArgs([]Arg{{Name: "name", Value: "John"}}))
}

func TestSerializeValuePlaceholders(t *testing.T) {
	s := NewSerializer(0)

	assert.Equal(t, `"<Error: boom>"`, s.SerializeResult(errors.New("boom")))

	fn := func() {}
	assert.Contains(t, s.SerializeResult(fn), "<function")

	var ch chan int
	assert.Equal(t, `"<channel>"`, s.SerializeResult(ch))
}

func TestSerializeValueCircularFallsBackToPlaceholder(t *testing.T) {
	type node struct {
		Name string
		Next *node
	}
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	s := NewSerializer(0)
	out := s.SerializeResult(a)
	assert.NotEmpty(t, out)
}

func TestMaxArgLengthTruncatesStrings(t *testing.T) {
	s := NewSerializer(10)
	out := s.SerializeResult("this is a very long string value")
	assert.LessOrEqual(t, len(out), 16)
	assert.Contains(t, out, "...")
}

func TestSerializeReceiverAndVariadic(t *testing.T) {
	s := NewSerializer(0)
	args := []Arg{
		{Name: "receiver", Value: "svc"},
		{Name: "items", Value: []interface{}{1, 2, 3}},
	}
	out := s.SerializeArgs(args)
	assert.Contains(t, out, `{"receiver":"svc"}`)
	assert.Contains(t, out, `{"items":[1,2,3]}`)
}
