package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00 and sorts before U+FF61 in UTF-16,
	// even though its UTF-8 encoding sorts after.
	obj := IRObject{
		"｡":     IRInt(1),
		"\U0001F600": IRInt(2),
	}
	assert.Equal(t, []string{"\U0001F600", "｡"}, obj.SortedKeys())
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(IRNull{}))
	assert.False(t, IsNull(IRString("")))
	assert.False(t, IsNull(IRInt(0)))
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"title": IRString("milk"),
		"qty":   IRInt(2),
		"done":  IRBool(false),
		"note":  IRNull{},
		"tags":  IRArray{IRString("dairy")},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"done":false,"note":null,"qty":2,"tags":["dairy"],"title":"milk"}`, string(data))

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, obj, decoded)
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"x": 1.5}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats not allowed")
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "a", IRString("a")},
		{"int", 7, IRInt(7)},
		{"int64", int64(-3), IRInt(-3)},
		{"whole float", float64(4), IRInt(4)},
		{"bool", true, IRBool(true)},
		{"slice", []any{"x", 1}, IRArray{IRString("x"), IRInt(1)}},
		{"map", map[string]any{"k": "v"}, IRObject{"k": IRString("v")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := FromAny(2.5)
	assert.Error(t, err)
	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestParseScalar(t *testing.T) {
	assert.Equal(t, IRInt(12), ParseScalar("12"))
	assert.Equal(t, IRInt(-1), ParseScalar("-1"))
	assert.Equal(t, IRBool(true), ParseScalar("true"))
	assert.Equal(t, IRNull{}, ParseScalar("null"))
	assert.Equal(t, IRString("groceries"), ParseScalar("groceries"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "null", Format(IRNull{}))
	assert.Equal(t, "abc", Format(IRString("abc")))
	assert.Equal(t, "-4", Format(IRInt(-4)))
	assert.Equal(t, "false", Format(IRBool(false)))
	assert.Equal(t, `[1,"a"]`, Format(IRArray{IRInt(1), IRString("a")}))
}
