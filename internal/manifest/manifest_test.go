package manifest

import (
	"strings"
	"testing"
)

const doc = `
entries:
  - version: "0.1.0"
    arch: "x86_64-unknown-linux-gnu"
    url: "https://example.com/dl/plugin.tar.gz"
    size: 128
    hash_algorithm: sha256
    digest: "ab"
    format: tar.gz
`

func TestLoadAndSelect(t *testing.T) {
	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	e, ok := m.Select("0.1.0", "x86_64-unknown-linux-gnu")
	if !ok {
		t.Fatalf("expected to find entry")
	}
	if e.Size != 128 {
		t.Fatalf("unexpected size: %d", e.Size)
	}
	if _, ok := m.Select("9.9.9", "x86_64-unknown-linux-gnu"); ok {
		t.Fatalf("expected no match for unknown version")
	}
}

func TestLoadRejectsUnknownAlgorithmBeforeNetworkIO(t *testing.T) {
	bad := strings.Replace(doc, "sha256", "md5", 1)
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for unknown hash algorithm")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	bad := strings.Replace(doc, "format: tar.gz", "format: rar", 1)
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected error for unknown archive format")
	}
}
