package canonical

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestMarshalIsOrderAndWhitespaceStable(t *testing.T) {
	a, err := Marshal(decode(t, `{"b":[1,2],"a":{"y":true,"x":null},"c":"<&>"}`))
	require.NoError(t, err)
	b, err := Marshal(decode(t, "{ \"c\" : \"<&>\",\n \"a\":{\"x\":null,  \"y\":true}, \"b\":[ 1 , 2 ] }"))
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":{"x":null,"y":true},"b":[1,2],"c":"<&>"}`, string(a))
}

func TestMarshalNormalizesNumbers(t *testing.T) {
	a, err := Marshal(decode(t, `{"version":1.0}`))
	require.NoError(t, err)
	b, err := Marshal(decode(t, `{"version":1}`))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
	assert.Equal(t, `{"version":1}`, string(a))
}

func TestMarshalNoTrailingWhitespace(t *testing.T) {
	out, err := Marshal(map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(out))
}

func TestTransformRejectsInvalidJSON(t *testing.T) {
	_, err := Transform([]byte(`{"a":`))
	assert.Error(t, err)
}
