package utils

import (
	rndm "math/rand"
	"path/filepath"
	"regexp"
	"strings"
)

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// GenerateRandomString creates a random alphanumeric string of length n.
func GenerateRandomString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rndm.Intn(len(letterRunes))]
	}
	return string(b)
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]`)

// SanitizeFilename strips path components and unsafe characters from an
// uploaded filename. Advisory only; never used for validation.
func SanitizeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
	if clean == "" || clean == "." {
		return "file"
	}
	return clean
}

// SplitTags takes a comma-separated string and returns a cleaned []string
func SplitTags(input string) []string {
	if input == "" {
		return []string{}
	}
	parts := strings.Split(input, ",")
	var tags []string
	seen := make(map[string]bool)
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" || seen[tag] {
			continue
		}
		tags = append(tags, tag)
		seen[tag] = true
	}
	return tags
}
