package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/reqchain/pkg/workflow"
)

func TestKeyValue(t *testing.T) {
	tests := []struct {
		in         string
		delims     []rune
		key, value string
		ok         bool
	}{
		{"Accept: json", nil, "Accept", " json", true},
		{"a=b=c", []rune{'='}, "a", "b=c", true},
		{"a:b=c", []rune{'=', ':'}, "a", "b=c", true},
		{"plain", nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, v, ok := KeyValue(tt.in, tt.delims...)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, k)
			assert.Equal(t, tt.value, v)
		})
	}
}

func TestSplitTrim(t *testing.T) {
	assert.Nil(t, SplitTrim("", ","))
	assert.Equal(t, []string{"a", "b"}, SplitTrim(" a , ,b ", ","))
}

func TestValue(t *testing.T) {
	tests := []struct {
		in   string
		kind workflow.Kind
		str  string
	}{
		{"42", workflow.KindNumber, "42"},
		{"true", workflow.KindBool, "true"},
		{"alice", workflow.KindString, "alice"},
		{`"quoted"`, workflow.KindString, "quoted"},
		{`{"a":1}`, workflow.KindObject, `{"a":1}`},
		{"", workflow.KindString, ""},
		{"12abc", workflow.KindString, "12abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := Value(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}
