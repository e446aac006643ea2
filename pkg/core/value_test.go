package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		json  string
	}{
		{"null", Null(), `null`},
		{"bool", Bool(true), `true`},
		{"number", Number(42.5), `42.5`},
		{"string", String("hello"), `"hello"`},
		{"array", Array(Number(1), String("two")), `[1,"two"]`},
		{
			"nested object",
			Object(map[string]Value{
				"tags":  Array(String("a"), String("b")),
				"score": Number(0.9),
				"meta":  Object(map[string]Value{"deep": Bool(false)}),
			}),
			`{"meta":{"deep":false},"score":0.9,"tags":["a","b"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var got Value
			require.NoError(t, json.Unmarshal(data, &got))
			assert.True(t, got.Equal(tt.value), "round-tripped value differs: %s", data)
		})
	}
}

func TestValueZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.True(t, v.Equal(Null()))

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestValueUnmarshalArbitraryJSON(t *testing.T) {
	raw := `{"user":{"name":"ada","age":36},"topics":["math","logic"],"active":true,"rating":null}`

	var v Value
	require.NoError(t, json.Unmarshal([]byte(raw), &v))

	require.Equal(t, KindObject, v.Kind())
	obj := v.ObjectVal()
	assert.Equal(t, "ada", obj["user"].ObjectVal()["name"].StringVal())
	assert.Equal(t, 36.0, obj["user"].ObjectVal()["age"].NumberVal())
	assert.Equal(t, KindArray, obj["topics"].Kind())
	assert.True(t, obj["active"].BoolVal())
	assert.True(t, obj["rating"].IsNull())
}

func TestValueEqual(t *testing.T) {
	a := Object(map[string]Value{"k": Array(Number(1), Number(2))})
	b := Object(map[string]Value{"k": Array(Number(1), Number(2))})
	c := Object(map[string]Value{"k": Array(Number(2), Number(1))})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Null()))
	assert.False(t, String("1").Equal(Number(1)))
}

func TestValueText(t *testing.T) {
	v := Object(map[string]Value{
		"topic": String("astronomy"),
		"stars": Number(7),
		"flags": Array(Bool(true), String("visible")),
	})

	text := v.Text()
	assert.Contains(t, text, "astronomy")
	assert.Contains(t, text, "topic")
	assert.Contains(t, text, "7")
	assert.Contains(t, text, "visible")
}

func TestValueUnmarshalRejectsTrailingData(t *testing.T) {
	// UnmarshalJSON is exercised directly: callers like json.Unmarshal
	// pre-validate top-level input, but the method must hold on its own.
	inputs := []string{
		`{"a":1} garbage`,
		`1 2`,
		`"done" {"x":true}`,
		`null null`,
	}
	for _, raw := range inputs {
		var v Value
		assert.Error(t, v.UnmarshalJSON([]byte(raw)), "input %q", raw)
	}

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte(` {"a":1} `)), "surrounding whitespace is fine")
	assert.Equal(t, 1.0, v.ObjectVal()["a"].NumberVal())
}

func TestValueMarshalRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(Number(nan()))
	assert.Error(t, err)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
