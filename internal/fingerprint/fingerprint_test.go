package fingerprint

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: " \n\t  ", expected: ""},
		{name: "collapse and lower", input: "  Foo   Bar ", expected: "foo bar"},
		{name: "newlines", input: "Senior\nGo\r\n\tEngineer", expected: "senior go engineer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTextIsIdempotentAndNormalized(t *testing.T) {
	if Text("only once") != Text("only once") {
		t.Fatal("expected identical fingerprints for identical text")
	}
	if Text("  Foo   Bar ") != Text("foo bar") {
		t.Fatal("expected normalized texts to share a fingerprint")
	}
	if Text("foo bar") == Text("foo  baz") {
		t.Fatal("expected different texts to differ")
	}
}

func TestTextEmptyIsStable(t *testing.T) {
	want := Fingerprint(sha256.Sum256(nil))
	if got := Text("   \n "); got != want {
		t.Fatalf("Text(whitespace) = %s, want %s", got, want)
	}
}

func TestBytesMatchesSHA256AcrossChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("resume-bytes-"), chunkSize/4)
	got, err := Bytes(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if want := Fingerprint(sha256.Sum256(payload)); got != want {
		t.Fatalf("Bytes() = %s, want %s", got, want)
	}
}

func TestBytesChunkOrderMatters(t *testing.T) {
	a := append(bytes.Repeat([]byte{'a'}, chunkSize), bytes.Repeat([]byte{'b'}, chunkSize)...)
	b := append(bytes.Repeat([]byte{'b'}, chunkSize), bytes.Repeat([]byte{'a'}, chunkSize)...)
	fa, _ := Bytes(bytes.NewReader(a))
	fb, _ := Bytes(bytes.NewReader(b))
	if fa == fb {
		t.Fatal("expected reordered chunks to change the fingerprint")
	}
}

type failingReader struct{ served bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		return copy(p, "partial"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestBytesReadFailure(t *testing.T) {
	_, err := Bytes(&failingReader{})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestBytesDistinctInputs(t *testing.T) {
	seen := make(map[Fingerprint]struct{}, 10000)
	buf := make([]byte, 32)
	for i := 0; i < 10000; i++ {
		if _, err := rand.Read(buf); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}
		f, err := Bytes(bytes.NewReader(buf))
		if err != nil {
			t.Fatalf("Bytes() error = %v", err)
		}
		if _, dup := seen[f]; dup {
			t.Fatalf("duplicate fingerprint after %d inputs", i)
		}
		seen[f] = struct{}{}
	}
}

func TestParseRoundTrip(t *testing.T) {
	f := Text("round trip")
	parsed, err := Parse(f.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed != f {
		t.Fatalf("Parse() = %s, want %s", parsed, f)
	}
	if _, err := Parse("abcd"); err == nil {
		t.Fatal("expected error for short digest")
	}
	if _, err := Parse(strings.Repeat("zz", Size)); err == nil {
		t.Fatal("expected error for non-hex digest")
	}
}

func TestNewKey(t *testing.T) {
	k1, err := NewKey(strings.NewReader("file"), "Go  Developer")
	if err != nil {
		t.Fatalf("NewKey() error = %v", err)
	}
	k2, _ := NewKey(strings.NewReader("file"), "go developer")
	if k1 != k2 {
		t.Fatal("expected equal keys")
	}
	k3, _ := NewKey(strings.NewReader("file2"), "go developer")
	if k1 == k3 {
		t.Fatal("expected keys with different files to differ")
	}

	parsed, err := ParseKey(k1.File.String(), k1.Text.String())
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if parsed != k1 {
		t.Fatal("expected ParseKey to invert String halves")
	}
}
