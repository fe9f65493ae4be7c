// Package schema validates submitted documents against the fixed instance
// schema.
package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed instance.schema.json
var instanceSchema []byte

const instanceSchemaURL = "https://edgecas.local/schemas/instance.schema.json"

// Validator checks a decoded JSON value. On success it returns the value to
// canonicalize; otherwise a non-empty list of human-readable reasons.
type Validator interface {
	Validate(v any) (any, []string)
}

type validator struct {
	schema *jsonschema.Schema
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// New returns a validator for the instance schema. The schema is compiled
// once per process.
func New() (Validator, error) {
	compileOnce.Do(func() {
		compiled, compileErr = Compile(instanceSchemaURL, instanceSchema)
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return &validator{schema: compiled}, nil
}

// Compile compiles a draft 2020-12 schema document registered under url.
func Compile(url string, doc []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return s, nil
}

// NewWithSchema wraps an already compiled schema.
func NewWithSchema(s *jsonschema.Schema) Validator {
	return &validator{schema: s}
}

func (v *validator) Validate(doc any) (any, []string) {
	err := v.schema.Validate(doc)
	if err == nil {
		return doc, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, []string{err.Error()}
	}
	return nil, Reasons(ve)
}

// Reasons flattens a validation error tree into one message per leaf,
// prefixed with the offending field path.
func Reasons(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, reason(e))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.Strings(out)
	return dedupe(out)
}

func reason(e *jsonschema.ValidationError) string {
	field := strings.ReplaceAll(strings.TrimPrefix(e.InstanceLocation, "/"), "/", ".")
	if field == "" {
		return e.Message
	}
	return field + ": " + e.Message
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
