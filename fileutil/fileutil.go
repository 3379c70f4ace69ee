package fileutil

import (
	"strings"
)

// GlobEscape escapes the glob meta characters in path so it can be matched literally.
func GlobEscape(path string) string {
	var r strings.Builder
	for _, c := range path {
		switch c {
		case '*', '?', '[':
			r.WriteRune('[')
			r.WriteRune(c)
			r.WriteRune(']')
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

// TempPath is where an encoder writes its output before it replaces path.
func TempPath(path string) string {
	return path + ".tmp"
}

// LockPath is the sidecar file locked while path is being rewritten.
func LockPath(path string) string {
	return path + ".lock"
}
