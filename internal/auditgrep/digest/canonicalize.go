package digest

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
)

// Canonicalize returns a deterministic JSON string for hashing a result.
// Structured results become an object with keys sorted; raw results become
// a JSON string of the source text.
func Canonicalize(r filter.Result) (string, error) {
	var buf bytes.Buffer
	if r.Record == nil {
		b, err := json.Marshal(r.Raw)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	keys := make([]string, 0, len(r.Record))
	for k := range r.Record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.Record[k])
		if err != nil {
			return "", err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
