package config

import (
	"encoding/json"
	"testing"
)

func TestStripJSON5Comments(t *testing.T) {
	src := []byte(`{
		// leading comment
		"name": "drive", /* inline */ "priority": 5,
		"args": { "speed": 10 }
	}`)
	cleaned := stripJSON5(src)

	var out map[string]any
	if err := json.Unmarshal(cleaned, &out); err != nil {
		t.Fatalf("expected valid JSON after stripping, got error: %v\ncleaned: %s", err, cleaned)
	}
	if out["name"] != "drive" {
		t.Fatalf("name = %v, want drive", out["name"])
	}
}

func TestStripJSON5TrailingCommas(t *testing.T) {
	src := []byte(`{
		"priority": 1,
		"args": { "a": 1, "b": [1, 2, 3,], },
	}`)
	cleaned := stripJSON5(src)

	var out map[string]any
	if err := json.Unmarshal(cleaned, &out); err != nil {
		t.Fatalf("expected valid JSON after stripping trailing commas, got error: %v\ncleaned: %s", err, cleaned)
	}
}

func TestStripJSON5DoesNotMangleStrings(t *testing.T) {
	src := []byte(`{"msg": "a // not a comment, /* also not */ trailing, "}`)
	cleaned := stripJSON5(src)

	var out map[string]any
	if err := json.Unmarshal(cleaned, &out); err != nil {
		t.Fatalf("string contents should be preserved verbatim: %v\ncleaned: %s", err, cleaned)
	}
	want := "a // not a comment, /* also not */ trailing, "
	if out["msg"] != want {
		t.Fatalf("msg = %q, want %q", out["msg"], want)
	}
}
