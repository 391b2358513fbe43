package console

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestShowRendersIndentedArgumentArray(t *testing.T) {
	var out bytes.Buffer
	d := New(&out)
	got := d.Show(map[string]any{"success": "0x1"})
	want := "[\n  {\n    \"success\": \"0x1\"\n  }\n]"
	if got != want {
		t.Fatalf("unexpected rendering:\n%s", got)
	}
	if d.Last() != want {
		t.Fatal("Last must return the latest rendering")
	}
	if strings.TrimSpace(out.String()) != want {
		t.Fatalf("expected echo to writer, got %q", out.String())
	}
}

func TestShowReplacesPreviousTextAndFallsBack(t *testing.T) {
	d := New(nil)
	d.Show("first")
	if got := d.Show(); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
	if got := d.Show(math.Inf(1)); got == "" || d.Last() != got {
		t.Fatalf("unencodable values must still render, got %q", got)
	}
}
