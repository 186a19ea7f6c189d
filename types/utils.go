package types

import "fmt"

var categoryNames = map[Category]string{
	CategoryCases:         "cases",
	CategoryManifests:     "manifests",
	CategoryConfig:        "config",
	CategoryCentralRepo:   "centralRepository",
	CategoryHealthMonitor: "healthMonitor",
}

// DisplayName returns the stable path segment for the category.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return ""
}

// String returns the display name, or "unknown" for values outside the enumeration.
func (c Category) String() string {
	if name := c.DisplayName(); name != "" {
		return name
	}
	return "unknown"
}

// IsValid checks if the category is one of the defined categories.
func (c Category) IsValid() bool {
	_, ok := categoryNames[c]
	return ok
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return []Category{
		CategoryCases,
		CategoryManifests,
		CategoryConfig,
		CategoryCentralRepo,
		CategoryHealthMonitor,
	}
}

// ParseCategory maps a display name back to its category.
func ParseCategory(name string) (Category, error) {
	for _, c := range AllCategories() {
		if c.DisplayName() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// String helps with making lock modes readable in logs and metrics labels.
func (m LockMode) String() string {
	switch m {
	case LockExclusive:
		return "exclusive"
	case LockShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ParseLockMode maps "exclusive" or "shared" back to a LockMode.
func ParseLockMode(s string) (LockMode, error) {
	switch s {
	case "exclusive":
		return LockExclusive, nil
	case "shared":
		return LockShared, nil
	default:
		return 0, fmt.Errorf("unknown lock mode %q", s)
	}
}
