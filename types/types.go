package types

// Category identifies one of the fixed top-level partitions of the coordination namespace.
// Categories are defined at compile time; each one owns a persistent node directly under
// the namespace root whose name is the category's display name.
// The zero Category is not a valid category.
type Category int

const (
	// CategoryCases holds case directory nodes, case node data, and case-scoped locks.
	CategoryCases Category = iota + 1

	// CategoryManifests holds auto ingest manifest nodes.
	CategoryManifests

	// CategoryConfig holds shared configuration nodes.
	CategoryConfig

	// CategoryCentralRepo holds central repository coordination nodes.
	CategoryCentralRepo

	// CategoryHealthMonitor holds health monitor coordination nodes.
	CategoryHealthMonitor
)

// LockMode distinguishes exclusive (write) from shared (read) lock acquisition.
// The zero LockMode is neither.
type LockMode int

const (
	// LockExclusive grants sole access to a path; it conflicts with every other holder.
	LockExclusive LockMode = iota + 1

	// LockShared grants concurrent read access; it conflicts only with exclusive holders.
	LockShared
)

// SessionID identifies a client session on a coordination server.
// Locks acquired through a session are released when the session ends.
type SessionID string

// LockToken identifies a lock held through a remote session.
type LockToken string

// CaseMetadata is the subset of a case's metadata needed to build its coordination node data.
// Loading and parsing the case metadata file happens elsewhere.
type CaseMetadata struct {
	// CaseDirectory is the absolute path of the case directory.
	CaseDirectory string

	// CreatedDate is the creation timestamp as written in the case metadata file.
	CreatedDate string

	// Name is the immutable unique case name.
	Name string

	// DisplayName is the user-facing, mutable case name.
	DisplayName string
}
