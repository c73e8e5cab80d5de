package util

import (
	"errors"
	"strings"
)

// SanitizeFileName normalizes a caller-supplied file name for storage: path
// separators become underscores, traversal sequences are rejected outright.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(name))
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}
