package models

import (
	"reflect"
	"testing"
)

func TestDataMerge(t *testing.T) {
	stored := Data{"a": float64(1), "nested": map[string]any{"x": "y"}}

	merged := stored.Merge(Data{"b": float64(2)})
	if !reflect.DeepEqual(merged, Data{"a": float64(1), "b": float64(2), "nested": map[string]any{"x": "y"}}) {
		t.Fatalf("unexpected union %v", merged)
	}

	merged = merged.Merge(Data{"a": float64(3), "nested": map[string]any{"z": true}})
	if merged["a"] != float64(3) {
		t.Fatalf("expected a overwritten, got %v", merged["a"])
	}
	if !reflect.DeepEqual(merged["nested"], map[string]any{"z": true}) {
		t.Fatalf("nested objects are replaced, not merged, got %v", merged["nested"])
	}

	if _, ok := stored["b"]; ok {
		t.Fatal("Merge must not modify the receiver")
	}
	if got := stored.Merge(nil); !reflect.DeepEqual(got, stored) {
		t.Fatalf("merging nothing must keep data, got %v", got)
	}
}

func TestDataCloneIsDeep(t *testing.T) {
	original := Data{"list": []any{map[string]any{"k": "v"}}}
	clone := original.Clone()

	clone["list"].([]any)[0].(map[string]any)["k"] = "changed"
	if original["list"].([]any)[0].(map[string]any)["k"] != "v" {
		t.Fatal("clone shares nested state with the original")
	}

	var empty Data
	if c := empty.Clone(); c == nil || len(c) != 0 {
		t.Fatalf("nil data must clone to an empty object, got %#v", c)
	}
}

func TestDataScanValue(t *testing.T) {
	var d Data
	if err := d.Scan([]byte(`{"name":"laptop"}`)); err != nil || d["name"] != "laptop" {
		t.Fatalf("Scan bytes: %v, %v", d, err)
	}
	if err := d.Scan(nil); err != nil || d == nil || len(d) != 0 {
		t.Fatalf("Scan nil: %v, %v", d, err)
	}
	if err := d.Scan("null"); err != nil || d == nil {
		t.Fatalf("Scan null: %v, %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}

	var nilData Data
	v, err := nilData.Value()
	if err != nil || v != "{}" {
		t.Fatalf("nil data must be stored as {}, got %v, %v", v, err)
	}
}
