package store

import (
	"fmt"
	"strings"
)

// ValidatePath checks that p is absolute, has no trailing slash (other than
// the root itself) and no empty segments.
func ValidatePath(p string) error {
	if p == "/" {
		return nil
	}
	if !strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") || strings.Contains(p, "//") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}

// Parent returns the parent of p; the parent of a top-level node is "/".
func Parent(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// Base returns the last segment of p.
func Base(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

// Join appends name to parent.
func Join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Ancestors returns every proper ancestor of p below the root, shallowest first.
// Ancestors("/a/b/c") is ["/a", "/a/b"].
func Ancestors(p string) []string {
	var out []string
	for i := 1; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}
