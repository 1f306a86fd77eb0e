package perrors

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// maxFileKeyStem limits the readable portion of a sanitized file key.
const maxFileKeyStem = 64

// SanitizeFileKey converts an arbitrary source-file path into a key that is
// safe to use as a filename or storage key. The readable stem keeps the last
// path components with unsafe characters replaced, and an 8-character content
// hash of the full path keeps distinct paths from colliding after
// sanitization.
func SanitizeFileKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	suffix := hex.EncodeToString(sum[:])[:8]

	var b strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	stem := strings.Trim(b.String(), "-.")
	for strings.Contains(stem, "..") {
		stem = strings.ReplaceAll(stem, "..", "-.")
	}
	if stem == "" {
		stem = "untitled"
	}
	if len(stem) > maxFileKeyStem {
		stem = stem[len(stem)-maxFileKeyStem:]
	}
	return stem + "-" + suffix
}

// ValidateFileKey checks that a key produced by SanitizeFileKey (or supplied
// by a caller) is safe to hand to a storage backend. It rejects empty keys,
// path separators, traversal sequences, and control characters.
func ValidateFileKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidInput, "file key cannot be empty")
	}
	if len(key) > 256 {
		return New(ErrCodeInvalidInput, "file key too long (max 256 characters)")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "file key contains control characters")
		}
	}
	if strings.ContainsAny(key, "/\\") {
		return New(ErrCodeInvalidInput, "file key cannot contain path separators")
	}
	if strings.Contains(key, "..") {
		return New(ErrCodeInvalidInput, "file key cannot contain traversal sequences (..)")
	}
	return nil
}
