package types

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestURLList_JSON(t *testing.T) {
	var one, many, empty URLList
	if err := json.Unmarshal([]byte(`"w.gguf"`), &one); err != nil || len(one) != 1 || one[0] != "w.gguf" {
		t.Fatalf("string form: %v %v", one, err)
	}
	if err := json.Unmarshal([]byte(`["a","b"]`), &many); err != nil || len(many) != 2 || many[1] != "b" {
		t.Fatalf("array form: %v %v", many, err)
	}
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil || empty != nil {
		t.Fatalf("empty string should decode to nil: %v %v", empty, err)
	}
	var bad URLList
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for a number")
	}
	b, err := json.Marshal(ModelConfig{Model: URLList{"w.gguf"}})
	if err != nil || !json.Valid(b) || !strings.Contains(string(b), `"model":"w.gguf"`) {
		t.Fatalf("single element should marshal as a string: %s %v", b, err)
	}
}

func TestURLList_YAML(t *testing.T) {
	var c struct {
		A URLList `yaml:"a"`
		B URLList `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: one\nb: [x, y]\n"), &c); err != nil {
		t.Fatal(err)
	}
	if len(c.A) != 1 || c.A[0] != "one" || len(c.B) != 2 {
		t.Fatalf("unexpected %+v", c)
	}
}
