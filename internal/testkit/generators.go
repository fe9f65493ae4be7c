package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// CompressibleBytes generates a slice of highly compressible bytes of the given length.
func CompressibleBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	pattern := []byte("highly compressible repeating pattern ")
	for i := range b {
		b[i] = pattern[i%len(pattern)]
	}
	for i := 0; i < length/1024; i++ {
		b[r.Intn(length)] = byte(r.Intn(256))
	}
	return b
}

// ScenarioDocument returns a minimal valid instance in canonical form with
// the given filter. filter must be plain ASCII.
func ScenarioDocument(filter string) []byte {
	f, _ := json.Marshal(filter)
	return []byte(`{"columns":[],"compareOn":false,"costDuration":"hr","filter":` + string(f) +
		`,"pricingUnit":"usd","region":"us-east-1","reservedTerm":"1yr","selected":[],"version":1,"visibleColumns":[]}`)
}

// SizedDocument returns a valid canonical instance exactly n bytes long.
// It panics if n is below the size of the empty-filter document.
func SizedDocument(n int) []byte {
	base := len(ScenarioDocument(""))
	if n < base {
		panic(fmt.Sprintf("testkit: document cannot be smaller than %d bytes", base))
	}
	return ScenarioDocument(strings.Repeat("a", n-base))
}

var words = []string{"usd", "eur", "hr", "mo", "yr", "us-east-1", "eu-west-2", "ap-south-1", "m5.large", "c6g.xlarge", "ram", "vcpu"}

// RandomDocument generates a valid instance with random contents.
func RandomDocument(r *rand.Rand) map[string]any {
	word := func() string { return words[r.Intn(len(words))] }

	cols := make([]any, r.Intn(5))
	for i := range cols {
		c := map[string]any{"id": word()}
		if r.Intn(2) == 0 {
			c["visible"] = r.Intn(2) == 0
		}
		if r.Intn(3) == 0 {
			c["sort"] = []any{"asc", "desc", nil}[r.Intn(3)]
		}
		cols[i] = c
	}
	selected := make([]any, r.Intn(4))
	for i := range selected {
		selected[i] = word()
	}
	visible := make([]any, r.Intn(4))
	for i := range visible {
		visible[i] = word()
	}

	return map[string]any{
		"version":        1,
		"filter":         fmt.Sprintf("%s %d", word(), r.Intn(1000)),
		"columns":        cols,
		"pricingUnit":    word(),
		"costDuration":   word(),
		"region":         word(),
		"reservedTerm":   word(),
		"compareOn":      r.Intn(2) == 0,
		"selected":       selected,
		"visibleColumns": visible,
	}
}

// ShuffledJSON serializes doc with object keys in random order, random
// whitespace and varying spellings of integral numbers. Every output is
// logically equal to doc.
func ShuffledJSON(r *rand.Rand, doc any) []byte {
	var buf bytes.Buffer
	writeShuffled(r, &buf, doc)
	return buf.Bytes()
}

func writeShuffled(r *rand.Rand, buf *bytes.Buffer, v any) {
	space := func() {
		buf.WriteString([]string{"", " ", "\n", "\t  "}[r.Intn(4)])
	}

	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			space()
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			space()
			buf.WriteByte(':')
			space()
			writeShuffled(r, buf, x[k])
		}
		space()
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			space()
			writeShuffled(r, buf, e)
		}
		space()
		buf.WriteByte(']')
	case int:
		fmt.Fprintf(buf, []string{"%d", "%d.0", "%de0"}[r.Intn(3)], x)
	default:
		b, _ := json.Marshal(x)
		buf.Write(b)
	}
}
