package schema

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = `{"version":1,"filter":"","columns":[],"pricingUnit":"usd","costDuration":"hr","region":"us-east-1","reservedTerm":"1yr","compareOn":false,"selected":[],"visibleColumns":[]}`

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func mutate(t *testing.T, fn func(m map[string]any)) any {
	t.Helper()
	m := decode(t, scenario).(map[string]any)
	fn(m)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(m))
	return decode(t, buf.String())
}

func TestValidate(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	t.Run("Accepts", func(t *testing.T) {
		out, reasons := v.Validate(decode(t, scenario))
		assert.Empty(t, reasons)
		assert.NotNil(t, out)
	})

	t.Run("AcceptsColumns", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) {
			m["columns"] = []any{map[string]any{"id": "vcpus", "visible": true, "sort": "desc"}}
			m["selected"] = []any{"m5.large"}
		})
		_, reasons := v.Validate(doc)
		assert.Empty(t, reasons)
	})

	t.Run("MissingField", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) { delete(m, "region") })
		_, reasons := v.Validate(doc)
		require.NotEmpty(t, reasons)
		assert.Contains(t, strings.Join(reasons, "\n"), "region")
	})

	t.Run("WrongVersion", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) { m["version"] = 2 })
		_, reasons := v.Validate(doc)
		require.NotEmpty(t, reasons)
		assert.Contains(t, strings.Join(reasons, "\n"), "version")
	})

	t.Run("WrongType", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) { m["compareOn"] = "yes" })
		_, reasons := v.Validate(doc)
		require.NotEmpty(t, reasons)
		assert.True(t, strings.HasPrefix(reasons[0], "compareOn: "), reasons[0])
	})

	t.Run("NestedPath", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) { m["selected"] = []any{"ok", 7} })
		_, reasons := v.Validate(doc)
		require.NotEmpty(t, reasons)
		assert.Contains(t, strings.Join(reasons, "\n"), "selected.1")
	})

	t.Run("UnknownField", func(t *testing.T) {
		doc := mutate(t, func(m map[string]any) { m["extra"] = true })
		_, reasons := v.Validate(doc)
		require.NotEmpty(t, reasons)
		assert.Contains(t, strings.Join(reasons, "\n"), "extra")
	})

	t.Run("NotAnObject", func(t *testing.T) {
		_, reasons := v.Validate(decode(t, `[1,2,3]`))
		assert.NotEmpty(t, reasons)
	})
}

func TestNewIsShared(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	assert.Same(t, a.(*validator).schema, b.(*validator).schema)
}

func TestCompileRejectsBadSchema(t *testing.T) {
	_, err := Compile("https://edgecas.local/bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
