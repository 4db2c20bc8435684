package epub

import (
	"net/url"
	"path"
	"strings"
)

func unescapeHref(href string) string {
	if s, err := url.PathUnescape(href); err == nil {
		return s
	}
	return href
}

func escapeHref(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// relativeHref returns href pointing to container path target from document
// located in container directory fromDir.
func relativeHref(fromDir, target string) string {
	split := func(p string) []string {
		p = path.Clean(p)
		if p == "." || p == "" {
			return nil
		}
		return strings.Split(p, "/")
	}

	from, to := split(fromDir), split(target)
	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	parts := make([]string, 0, len(from)-common+len(to)-common)
	for range from[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return escapeHref(strings.Join(parts, "/"))
}
