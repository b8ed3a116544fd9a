package util

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const idBytes = 16

func NewID(prefix string) string {
	bytes := make([]byte, idBytes)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// ValidID reports whether id looks like NewID(prefix) output, optionally
// followed by an extension as produced by Extension.
func ValidID(prefix, id string) bool {
	if prefix != "" {
		if !strings.HasPrefix(id, prefix+"_") {
			return false
		}
		id = strings.TrimPrefix(id, prefix+"_")
	}
	body, ext, hasExt := strings.Cut(id, ".")
	if len(body) != idBytes*2 {
		return false
	}
	if _, err := hex.DecodeString(body); err != nil {
		return false
	}
	if hasExt {
		return ext != "" && Extension("x."+ext) == "."+ext
	}
	return true
}

// Extension returns the lowercased extension of filename restricted to ASCII
// letters and digits, or "" when none survives.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(filename)), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 10 {
		return ""
	}
	return "." + b.String()
}

// SanitizeFilename creates a safe download name from a title.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		case r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
