package httpmetrics

import (
	"regexp"
	"strings"
)

// unmatchedPath labels requests outside the served prefixes so that
// scanners probing random URLs cannot grow metric cardinality.
const unmatchedPath = "/other"

var (
	uuidRegex    = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	servedPrefix = []string{"/api/", "/health", "/metrics"}
)

func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if !isServed(path) {
		return unmatchedPath
	}

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	for i, part := range parts {
		if uuidRegex.MatchString(part) || isNumeric(part) {
			parts[i] = "{param}"
		}
	}
	return strings.Join(parts, "/")
}

func isServed(path string) bool {
	for _, prefix := range servedPrefix {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
