package entry

import (
	"strings"
)

// Normalize converts an absolute filesystem path to the canonical form
// required by Entry.Path: no trailing separator (except for the filesystem
// root itself), and no "." or ".." components (entry invariant 2). It does
// not touch the filesystem and does not resolve symbolic links; it is purely
// lexical, mirroring the crawler's own lexical path construction rather than
// path/filepath's OS-specific cleaning rules.
func Normalize(path string) string {
	if path == "" {
		return "/"
	}

	leadingSlash := path[0] == '/'

	segments := strings.Split(path, "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch segment {
		case "", ".":
			continue
		case "..":
			if len(cleaned) > 0 {
				cleaned = cleaned[:len(cleaned)-1]
			}
		default:
			cleaned = append(cleaned, segment)
		}
	}

	joined := strings.Join(cleaned, "/")
	if leadingSlash {
		if joined == "" {
			return "/"
		}
		return "/" + joined
	}
	return joined
}

// Join concatenates a parent path with a child name to produce a child path,
// using the same lightweight, non-cleaning concatenation the crawler relies
// on when descending (parent paths are already normalized, so no further
// cleaning is needed for each step).
func Join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Parent returns the path of the entry's parent directory. It returns "" if
// path is the filesystem root.
func Parent(path string) string {
	if path == "/" {
		return ""
	}
	lastSlash := strings.LastIndexByte(path, '/')
	if lastSlash <= 0 {
		return "/"
	}
	return path[:lastSlash]
}

// Ancestors returns every ancestor directory path from the filesystem root
// down to (but not including) path itself, in root-to-leaf order. It is used
// by the crawler's prepend step.
func Ancestors(path string) []string {
	if path == "/" || path == "" {
		return nil
	}
	trimmed := strings.Trim(path, "/")
	segments := strings.Split(trimmed, "/")

	ancestors := make([]string, 0, len(segments))
	current := ""
	for _, segment := range segments[:len(segments)-1] {
		current = current + "/" + segment
		ancestors = append(ancestors, current)
	}
	return append([]string{"/"}, ancestors...)
}
