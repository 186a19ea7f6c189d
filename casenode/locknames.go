package casenode

import (
	"path/filepath"
	"regexp"
)

const (
	resourcesLockSuffix     = "_RESOURCES"
	autoIngestLogLockSuffix = "_AUTO_INGEST_LOG"
)

// caseDirTimestamp matches the _yyyyMMdd_HHmmss suffix appended to case directory names.
var caseDirTimestamp = regexp.MustCompile(`_\d{8}_\d{6}$`)

// CaseNameLockName returns the lock name shared by every directory created for
// the same case name: the directory base name without its timestamp suffix.
func CaseNameLockName(caseDirectory string) string {
	base := filepath.Base(caseDirectory)
	return caseDirTimestamp.ReplaceAllString(base, "")
}

// CaseResourcesLockName returns the lock name guarding a case's shared resources.
func CaseResourcesLockName(caseDirectory string) string {
	return caseDirectory + resourcesLockSuffix
}

// CaseAutoIngestLogLockName returns the lock name guarding a case's auto ingest log.
func CaseAutoIngestLogLockName(caseDirectory string) string {
	return caseDirectory + autoIngestLogLockSuffix
}

// CaseDirectoryLockName returns the lock name for the case directory itself.
func CaseDirectoryLockName(caseDirectory string) string {
	return caseDirectory
}
