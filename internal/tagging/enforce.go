package tagging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
	"github.com/bookverse/platform/internal/semver"
)

// EnforceOutcome classifies how an enforcement run converged.
type EnforceOutcome string

const (
	// EnforceNoVersions means the application has no production-eligible
	// versions; nothing to do.
	EnforceNoVersions EnforceOutcome = "no_prod_versions"

	// EnforceNoCandidates means every production-eligible version is
	// quarantined or unparseable; nothing to do.
	EnforceNoCandidates EnforceOutcome = "no_eligible_versions"

	// EnforceConverged means the highest eligible version already holds
	// "latest".
	EnforceConverged EnforceOutcome = "already_converged"

	// EnforceRetagged means the engine moved the "latest" tag.
	EnforceRetagged EnforceOutcome = "retagged"
)

// EnforceResult reports the effect of one enforcement run.
type EnforceResult struct {
	Outcome EnforceOutcome
	// Latest is the version holding "latest" after the run ("" when none).
	Latest string
	// Previous is the version that lost "latest" ("" when none did).
	Previous string
	// PatchesIssued counts the mutations sent to the registry.
	PatchesIssued int
}

// EnforceLatest establishes the latest-tag invariant for one application:
// the highest-SemVer production-eligible version that is not quarantined
// carries "latest", and no other version does.
//
// The new latest is tagged before the old one is restored, so a failure
// between the two patches leaves the correct version tagged "latest"; the
// old version's stale backup property is cleaned up by the next run.
func (s *Service) EnforceLatest(ctx context.Context, appKey string) (EnforceResult, error) {
	ctx, span := s.tracer.Start(ctx, "tagging.enforce_latest")
	defer span.End()
	span.SetAttributes(attribute.String("app.key", appKey))

	log.Info(log.CatTagging, "enforcing latest tag invariants", "app", appKey)

	prod, err := s.productionVersions(ctx, appKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return EnforceResult{}, err
	}

	if len(prod) == 0 {
		log.Info(log.CatTagging, "no prod versions found", "app", appKey)
		return s.finish(span, EnforceResult{Outcome: EnforceNoVersions})
	}

	var eligible []registry.Version
	var currentLatest *registry.Version
	for i, v := range prod {
		if v.Tag == registry.TagLatest && currentLatest == nil {
			currentLatest = &prod[i]
		}
		if !v.IsQuarantined() {
			eligible = append(eligible, v)
		}
	}

	if len(eligible) == 0 {
		log.Warn(log.CatTagging, "all prod versions quarantined", "app", appKey)
		return s.finish(span, EnforceResult{Outcome: EnforceNoCandidates})
	}

	names := make([]string, len(eligible))
	for i, v := range eligible {
		names[i] = v.Version
	}
	desiredName, ok := semver.Max(names)
	if !ok {
		log.Warn(log.CatTagging, "no parseable versions", "app", appKey)
		return s.finish(span, EnforceResult{Outcome: EnforceNoCandidates})
	}

	if currentLatest != nil && currentLatest.Version == desiredName {
		log.Info(log.CatTagging, "latest tag already converged", "app", appKey, "version", desiredName)
		return s.finish(span, EnforceResult{Outcome: EnforceConverged, Latest: desiredName})
	}

	var desired *registry.Version
	for i := range eligible {
		if eligible[i].Version == desiredName {
			desired = &eligible[i]
			break
		}
	}

	result := EnforceResult{Outcome: EnforceRetagged, Latest: desiredName}

	// Assign the new latest first so that at every intermediate point at
	// most one version is recorded as latest.
	if desired.Tag != registry.TagLatest {
		latestTag := registry.TagLatest
		patch := registry.Patch{
			Tag:           &latestTag,
			SetProperties: backupProperty(registry.PropBackupBeforeLatest, desired.Tag),
		}
		if err := s.client.PatchVersion(ctx, appKey, desired.Version, patch); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, fmt.Errorf("assigning latest to %s@%s: %w", appKey, desired.Version, err)
		}
		result.PatchesIssued++
		log.Info(log.CatTagging, "assigned latest tag", "app", appKey, "version", desired.Version)
	}

	// Restore the displaced version's tag and drop its backup property.
	if currentLatest != nil && currentLatest.Version != desiredName {
		restore := restoreTag(*currentLatest)
		patch := registry.Patch{
			Tag:              &restore,
			DeleteProperties: []string{registry.PropBackupBeforeLatest},
		}
		if err := s.client.PatchVersion(ctx, appKey, currentLatest.Version, patch); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, fmt.Errorf("restoring tag on %s@%s: %w", appKey, currentLatest.Version, err)
		}
		result.PatchesIssued++
		result.Previous = currentLatest.Version
		log.Info(log.CatTagging, "restored tag to previous latest",
			"app", appKey, "version", currentLatest.Version, "tag", restore)
	}

	return s.finish(span, result)
}

func (s *Service) finish(span trace.Span, r EnforceResult) (EnforceResult, error) {
	span.SetAttributes(
		attribute.String("tagging.outcome", string(r.Outcome)),
		attribute.Int("tagging.patches", r.PatchesIssued),
	)
	return r, nil
}

// restoreTag determines the tag a displaced latest version returns to: its
// backed-up tag when recoverable, otherwise the neutral default. A backup
// equal to "latest" is never restored verbatim; the version string stands in
// for it instead.
func restoreTag(v registry.Version) string {
	backup, ok := v.BackupTag(registry.PropBackupBeforeLatest)
	if !ok {
		return registry.DefaultRestoreTag
	}
	if backup == registry.TagLatest {
		return v.Version
	}
	return backup
}
