// Package registry defines the Trust Registry domain model: the Version
// record, its tag vocabulary, and the abstract client capability the tag
// reconciliation engine consumes. Concrete transports live in subpackages.
package registry

import "strings"

// Tag and property vocabulary used by the reconciliation engine.
const (
	// TagLatest marks the single version an application serves as current.
	TagLatest = "latest"

	// QuarantinePrefix prefixes the tag of a rolled-back version. The full
	// tag is always QuarantinePrefix + version string.
	QuarantinePrefix = "quarantine-"

	// DefaultRestoreTag is assigned when a version loses "latest" and no
	// backup tag is recoverable.
	DefaultRestoreTag = "version"

	// PropBackupBeforeLatest stores the tag a version carried before the
	// engine assigned it "latest".
	PropBackupBeforeLatest = "original_tag_before_latest"

	// PropBackupBeforeQuarantine stores the tag a version carried before
	// the engine quarantined it.
	PropBackupBeforeQuarantine = "original_tag_before_quarantine"
)

// Release statuses that make a version production-eligible.
const (
	StatusReleased       = "RELEASED"
	StatusTrustedRelease = "TRUSTED_RELEASE"
)

// StageProd is the lifecycle stage of versions served to production.
const StageProd = "PROD"

// Version is one published release of an application in the Trust Registry.
// The version string is the immutable identity within an application; tag
// and properties are mutable.
type Version struct {
	Version       string              `json:"version"`
	Tag           string              `json:"tag"`
	ReleaseStatus string              `json:"release_status"`
	CurrentStage  string              `json:"current_stage,omitempty"`
	Properties    map[string][]string `json:"properties,omitempty"`
}

// IsQuarantined reports whether the version's tag marks it quarantined.
func (v Version) IsQuarantined() bool {
	return strings.HasPrefix(v.Tag, QuarantinePrefix)
}

// IsProductionEligible reports whether the version participates in tag
// reconciliation: it must sit in the PROD stage and carry an eligible
// release status.
func (v Version) IsProductionEligible() bool {
	if !strings.EqualFold(v.CurrentStage, StageProd) {
		return false
	}
	switch strings.ToUpper(v.ReleaseStatus) {
	case StatusReleased, StatusTrustedRelease:
		return true
	default:
		return false
	}
}

// BackupTag returns the backed-up tag stored under the given property key.
// The registry's property schema stores backups as single-element lists;
// only the first element is consulted.
func (v Version) BackupTag(prop string) (string, bool) {
	values, ok := v.Properties[prop]
	if !ok || len(values) == 0 || values[0] == "" {
		return "", false
	}
	return values[0], true
}

// QuarantineTagFor returns the quarantine tag for a version string.
func QuarantineTagFor(version string) string {
	return QuarantinePrefix + version
}
