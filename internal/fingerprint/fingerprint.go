// Package fingerprint derives stable content digests used as analysis cache keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// chunkSize bounds memory use when hashing uploads of arbitrary size.
const chunkSize = 64 * 1024

// Size is the digest length in bytes.
const Size = sha256.Size

// ErrIO indicates the input stream could not be read to the end.
var ErrIO = errors.New("fingerprint: input unreadable")

// Fingerprint is a SHA-256 digest of a byte stream or of normalized text.
type Fingerprint [Size]byte

// String returns the lowercase hex form persisted by the stores.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Parse decodes the hex form produced by String.
func Parse(value string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(raw) != Size {
		return f, fmt.Errorf("parse fingerprint: want %d bytes, got %d", Size, len(raw))
	}
	copy(f[:], raw)
	return f, nil
}

// Bytes hashes r in fixed-size chunks in a single pass.
func Bytes(r io.Reader) (Fingerprint, error) {
	var f Fingerprint
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = hasher.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return f, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	copy(f[:], hasher.Sum(nil))
	return f, nil
}

// Text hashes the UTF-8 encoding of Normalize(text).
func Text(text string) Fingerprint {
	return Fingerprint(sha256.Sum256([]byte(Normalize(text))))
}

// Normalize lowercases text, trims it and collapses every whitespace run,
// newlines included, into a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Key identifies one analysis context: an uploaded file evaluated against a
// job description. Keys compare with ==.
type Key struct {
	File Fingerprint
	Text Fingerprint
}

// NewKey fingerprints the file stream and the job text.
func NewKey(file io.Reader, text string) (Key, error) {
	fileHash, err := Bytes(file)
	if err != nil {
		return Key{}, err
	}
	return Key{File: fileHash, Text: Text(text)}, nil
}

// ParseKey decodes a key from the hex forms of its two halves.
func ParseKey(fileHash, textHash string) (Key, error) {
	file, err := Parse(fileHash)
	if err != nil {
		return Key{}, fmt.Errorf("file hash: %w", err)
	}
	text, err := Parse(textHash)
	if err != nil {
		return Key{}, fmt.Errorf("text hash: %w", err)
	}
	return Key{File: file, Text: text}, nil
}

func (k Key) String() string {
	return k.File.String() + ":" + k.Text.String()
}
