package config

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodeArgs(t *testing.T, raw string) orderedArgs {
	t.Helper()
	var a orderedArgs
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	return a
}

func TestFlattenArgsEmpty(t *testing.T) {
	if got := flattenArgs(decodeArgs(t, `{}`)); len(got) != 0 {
		t.Fatalf("flattening {} should produce no tokens, got %v", got)
	}
}

func TestFlattenArgsOrderAndTypes(t *testing.T) {
	raw := `{
		"verbose": true,
		"quiet": false,
		"channels": [1, 2, 3],
		"name": "rover-1",
		"count": 4,
		"ignored": null
	}`
	got := flattenArgs(decodeArgs(t, raw))
	want := []string{
		"--verbose",
		"--channels", "1", "--channels", "2", "--channels", "3",
		"--name", "rover-1",
		"--count", "4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOrderedArgsPreservesDeclaredOrder(t *testing.T) {
	raw := `{"z": 1, "a": 2, "m": 3}`
	a := decodeArgs(t, raw)
	want := []string{"z", "a", "m"}
	for i, e := range a {
		if e.Key != want[i] {
			t.Fatalf("args[%d].Key = %q, want %q (order not preserved)", i, e.Key, want[i])
		}
	}
}
