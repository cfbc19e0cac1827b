package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one entry of a collection: caller fields plus the system-assigned
// reference, timestamp and, for intake collections, status.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the canonical string form of a field, or "" if it is absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	return Canonical(v)
}

// Int returns a field as an integer when it holds one in any JSON-compatible form.
func (r Record) Int(field string) (int64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(Canonical(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Canonical renders a scalar so that 3, int64(3), float64(3), json.Number("3")
// and "3" all compare equal.
func Canonical(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ByField matches records whose field equals value in canonical form.
func ByField(field string, value any) Matcher {
	want := strings.TrimSpace(Canonical(value))
	return func(r Record) bool {
		v, ok := r[field]
		if !ok || v == nil {
			return false
		}
		return Canonical(v) == want
	}
}

// ByID matches the numeric id of notices, users and schedule entries.
func ByID(id any) Matcher { return ByField(FieldID, id) }

// ByReference matches the token reference of intake records.
// References are upper-case, so the lookup is too.
func ByReference(ref string) Matcher {
	return ByField(FieldReference, strings.ToUpper(strings.TrimSpace(ref)))
}
