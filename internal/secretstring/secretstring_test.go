package secretstring

import (
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestStringRedacts(t *testing.T) {
	s := New("super-secret-token")
	rendered := fmt.Sprintf("%v", s)
	if rendered == "super-secret-token" {
		t.Fatalf("secret leaked through Stringer: %s", rendered)
	}
	if rendered != "<REDACTED, length 18>" {
		t.Fatalf("unexpected redaction format: %s", rendered)
	}
}

func TestExposeReturnsRawValue(t *testing.T) {
	s := New("raw-value")
	if s.Expose() != "raw-value" {
		t.Fatalf("Expose() = %q, want raw-value", s.Expose())
	}
}

func TestIsEmpty(t *testing.T) {
	if !New("").IsEmpty() {
		t.Fatalf("expected empty secret")
	}
	if New("x").IsEmpty() {
		t.Fatalf("expected non-empty secret")
	}
}

func TestUnmarshalYAML(t *testing.T) {
	var s Secret
	if err := yaml.Unmarshal([]byte(`"hello"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Expose() != "hello" {
		t.Fatalf("Expose() = %q, want hello", s.Expose())
	}
}
