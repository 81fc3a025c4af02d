// Package blob persists uploaded file content under generated names.
package blob

import (
	"regexp"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename replaces every character outside [a-zA-Z0-9.-] with '_'.
func SanitizeFilename(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// NewHandle returns a unique blob name of the form uuid_<sanitized filename>.
func NewHandle(filename string) string {
	return uuid.NewString() + "_" + SanitizeFilename(filename)
}

// ValidHandle reports whether h can be used as a single path element.
func ValidHandle(h string) bool {
	return h != "" && h != "." && h != ".." && !unsafeHandle.MatchString(h)
}

var unsafeHandle = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
