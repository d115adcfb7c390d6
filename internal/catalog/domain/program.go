package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ProgramID identifies a program. Relational sources hand back program keys as
// integers, floats or strings depending on driver and column type, so ids are
// kept in a canonical string form and compared by value.
type ProgramID string

// ParseProgramID converts a raw column value into a ProgramID.
// A nil value, an empty string and a zero-length byte slice yield "".
func ParseProgramID(value any) (ProgramID, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case ProgramID:
		return canonicalID(string(v)), nil
	case string:
		return canonicalID(v), nil
	case []byte:
		return canonicalID(string(v)), nil
	case int:
		return ProgramID(strconv.FormatInt(int64(v), 10)), nil
	case int32:
		return ProgramID(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return ProgramID(strconv.FormatInt(v, 10)), nil
	case uint32:
		return ProgramID(strconv.FormatUint(uint64(v), 10)), nil
	case uint64:
		return ProgramID(strconv.FormatUint(v, 10)), nil
	case float32:
		return floatID(float64(v))
	case float64:
		return floatID(v)
	default:
		return "", fmt.Errorf("catalog: unsupported program id type %T", value)
	}
}

// ProgramKey renders a raw program id column as text without folding: text
// columns keep their exact characters ("007" stays "007"), numeric columns use
// their decimal form. Record ids are derived from this text.
func ProgramKey(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case ProgramID:
		return string(v), nil
	}
	id, err := ParseProgramID(value)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// MustProgramID is ParseProgramID for values known to be valid (tests, fixtures).
func MustProgramID(value any) ProgramID {
	id, err := ParseProgramID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether the id is empty.
func (id ProgramID) IsZero() bool { return id == "" }

func (id ProgramID) String() string { return string(id) }

func floatID(v float64) (ProgramID, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrInvalidProgramID
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return ProgramID(strconv.FormatInt(int64(v), 10)), nil
	}
	return ProgramID(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// canonicalID trims whitespace and folds numeric strings such as "007" or "7.0"
// onto their integer form so they match integer keys.
func canonicalID(raw string) ProgramID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ProgramID(strconv.FormatInt(n, 10))
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return ProgramID(strconv.FormatInt(int64(f), 10))
	}
	return ProgramID(raw)
}

// Program is a catalog entry. Programs form a forest through ParentID.
type Program struct {
	ID       ProgramID
	ParentID ProgramID
	Currency string
	// Attributes holds every other column of the program row, keyed by column name.
	Attributes map[string]any
}

// HasParent reports whether the program points at a parent.
func (p Program) HasParent() bool { return !p.ParentID.IsZero() }

// Clone returns a deep copy of the program, attribute values included.
func (p Program) Clone() Program {
	out := p
	out.Attributes = cloneAttributes(p.Attributes)
	return out
}

func cloneAttributes(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return append([]byte(nil), t...)
	case map[string]any:
		return cloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case time.Time:
		return t
	default:
		return v
	}
}
