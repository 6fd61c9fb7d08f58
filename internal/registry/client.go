package registry

import "context"

// Patch describes a partial update to one version's tag and properties.
// Nil/empty fields are omitted from the request. SetProperties merges and
// overwrites the given keys; DeleteProperties removes keys.
type Patch struct {
	Tag              *string
	SetProperties    map[string][]string
	DeleteProperties []string
}

// VersionContent is the detailed content of a version, as returned by the
// registry's content endpoint with releasables included.
type VersionContent struct {
	Sources     map[string]any   `json:"sources"`
	Releasables []map[string]any `json:"releasables"`
}

// SourceVersion names one application version included in an aggregate.
type SourceVersion struct {
	ApplicationKey string `json:"application_key"`
	Version        string `json:"version"`
}

// CreateVersionRequest creates an aggregate (platform) version whose sources
// reference the included application versions.
type CreateVersionRequest struct {
	Version string          `json:"version"`
	Tag     string          `json:"tag,omitempty"`
	Sources []SourceVersion `json:"-"`
}

// Client is the abstract Trust Registry capability the engine consumes.
// Implementations typically return versions newest-created-first, but
// callers must not rely on ordering and re-sort by SemVer themselves.
type Client interface {
	// ListVersions returns all versions of the application.
	ListVersions(ctx context.Context, appKey string) ([]Version, error)

	// PatchVersion mutates tag and/or properties on one version. Safe to
	// call sequentially; no transactional guarantee across calls.
	PatchVersion(ctx context.Context, appKey, version string, p Patch) error

	// GetVersionContent fetches a version's sources and releasables.
	GetVersionContent(ctx context.Context, appKey, version string) (VersionContent, error)

	// CreateVersion creates a new aggregate version under the application.
	CreateVersion(ctx context.Context, appKey string, req CreateVersionRequest) error
}
