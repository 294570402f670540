package utils

import (
	"bytes"
	"testing"
)

func TestGenUniqIDStr(t *testing.T) {
	SetupIDWorker(1)
	t.Log(GenUniqIDStr(), len(GenUniqIDStr()))
	if GenUniqIDStr() == GenUniqIDStr() {
		t.Fatal("expected unique ids")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("hello depot"))
	b := ContentHash([]byte("hello depot"))
	if a != b {
		t.Fatalf("same content must hash identically, got %s and %s", a, b)
	}

	c := ContentHash([]byte("hello depot!"))
	if a == c {
		t.Fatal("different content should not collide")
	}

	fromReader, err := ContentHashFromReader(bytes.NewReader([]byte("hello depot")))
	if err != nil {
		t.Fatalf("ContentHashFromReader failed: %v", err)
	}
	if fromReader != a {
		t.Fatalf("reader hash mismatch: %s != %s", fromReader, a)
	}
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"report.PDF":   "pdf",
		"archive.tar":  "tar",
		"noext":        "",
		"trailingdot.": "",
	}
	for name, want := range cases {
		if got := FileExtension(name); got != want {
			t.Errorf("FileExtension(%q) = %q, want %q", name, got, want)
		}
	}
}
