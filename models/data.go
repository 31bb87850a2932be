package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Data is an opaque JSON object attached to a peer.
type Data map[string]any

// Value implements driver.Valuer.
func (d Data) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (d *Data) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Data{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan data: unsupported type %T", src)
	}

	out := Data{}
	if len(raw) != 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("scan data: %w", err)
		}
	}
	if out == nil {
		out = Data{}
	}
	*d = out
	return nil
}

// Merge returns a copy of d with every top-level key of update written over
// it. Keys missing from update keep their current value.
func (d Data) Merge(update Data) Data {
	merged := d.Clone()
	for k, v := range update {
		merged[k] = cloneValue(v)
	}
	return merged
}

// Clone returns a deep copy of d. A nil Data clones to an empty one.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Data(t).Clone())
	case Data:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
