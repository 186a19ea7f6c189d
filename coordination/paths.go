package coordination

import (
	"strings"

	"github.com/jathurchan/casecoord/types"
)

// FullyQualifiedPath maps a category and relative path to its node path:
// <root>/<category>/<PATH IN UPPER CASE>. A leading slash on path is kept
// as the separator. It performs no I/O.
func (s *Service) FullyQualifiedPath(category types.Category, path string) string {
	base := s.categoryRoot(category)
	rel := strings.ToUpper(path)
	if strings.HasPrefix(rel, "/") {
		return base + rel
	}
	return base + "/" + rel
}

func (s *Service) categoryRoot(category types.Category) string {
	if root, ok := s.categoryRoots[category.DisplayName()]; ok {
		return root
	}
	return s.root + "/" + category.DisplayName()
}

// CategoryRoots returns a copy of the display name to category root mapping.
func (s *Service) CategoryRoots() map[string]string {
	out := make(map[string]string, len(s.categoryRoots))
	for k, v := range s.categoryRoots {
		out[k] = v
	}
	return out
}

// RootNamespace returns the root node of the namespace.
func (s *Service) RootNamespace() string {
	return s.root
}
