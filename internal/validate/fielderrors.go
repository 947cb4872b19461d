// Package validate holds the pure, side-effect-free submission validators.
// They run identically wherever they are called; only the server-side run
// gates a write.
package validate

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldErrors maps a field path (dot notation, list indices in brackets) to
// a human-readable message.
type FieldErrors map[string]string

// Add records a message for the path unless one is already present. The
// first error per field wins, matching incremental client-side display.
func (fe FieldErrors) Add(path, message string) {
	if _, ok := fe[path]; !ok {
		fe[path] = message
	}
}

// Merge folds other into fe under an optional path prefix.
func (fe FieldErrors) Merge(prefix string, other FieldErrors) {
	for path, msg := range other {
		if prefix != "" {
			if path == "" {
				path = prefix
			} else {
				path = prefix + "." + path
			}
		}
		fe.Add(path, msg)
	}
}

// Paths returns the sorted field paths, for deterministic output.
func (fe FieldErrors) Paths() []string {
	out := make([]string, 0, len(fe))
	for p := range fe {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// collectSchemaErrors flattens a jsonschema validation error tree into
// per-field messages.
func collectSchemaErrors(fe FieldErrors, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		fe.Add(instancePath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(fe, cause)
	}
}

// toJSONValue round-trips v through JSON so number and collection types
// match what the schema validator expects, regardless of how the caller
// built the map.
func toJSONValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// instancePath converts a JSON pointer ("/disbursements_items/0/amount")
// into the dot/bracket form used at the API boundary
// ("disbursements_items[0].amount").
func instancePath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for i, seg := range strings.Split(ptr, "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(seg)
	}
	return b.String()
}
