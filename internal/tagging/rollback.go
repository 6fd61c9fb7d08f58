package tagging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
)

// RollbackResult reports the effect of quarantining one version.
type RollbackResult struct {
	// Quarantined is the tag now carried by the rolled-back version.
	Quarantined string
	// PreviousTag is the tag the version carried before quarantine.
	PreviousTag string
	// HadLatest records whether the rolled-back version held "latest".
	HadLatest bool
	// Promoted is the version that received "latest" afterwards ("" when
	// no promotion happened).
	Promoted string
	// NoSuccessor is true when "latest" was vacated but no eligible
	// version remained to receive it.
	NoSuccessor bool
	// PatchesIssued counts the mutations sent to the registry.
	PatchesIssued int
}

// HandleRollback quarantines one version and, when that version held the
// "latest" tag, promotes the next-highest eligible version in its place.
//
// The quarantine patch is issued before any promotion, so a failure between
// the two leaves the bad version already fenced off; a later enforcement run
// fills the vacancy.
func (s *Service) HandleRollback(ctx context.Context, appKey, version string) (RollbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "tagging.handle_rollback")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.key", appKey),
		attribute.String("app.version", version),
	)

	log.Info(log.CatTagging, "handling rollback", "app", appKey, "version", version)

	prod, err := s.productionVersions(ctx, appKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return RollbackResult{}, err
	}

	var target *registry.Version
	for i := range prod {
		if prod[i].Version == version {
			target = &prod[i]
			break
		}
	}
	if target == nil {
		err := fmt.Errorf("version %s of %s: %w", version, appKey, registry.ErrNotFound)
		span.SetStatus(codes.Error, err.Error())
		return RollbackResult{}, err
	}

	result := RollbackResult{
		Quarantined: registry.QuarantineTagFor(version),
		PreviousTag: target.Tag,
		HadLatest:   target.Tag == registry.TagLatest,
	}

	// Quarantine first. Promotion only matters once the bad version can
	// no longer be selected.
	quarantineTag := result.Quarantined
	patch := registry.Patch{
		Tag:           &quarantineTag,
		SetProperties: backupProperty(registry.PropBackupBeforeQuarantine, target.Tag),
	}
	if err := s.client.PatchVersion(ctx, appKey, version, patch); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("quarantining %s@%s: %w", appKey, version, err)
	}
	result.PatchesIssued++
	log.Info(log.CatTagging, "quarantined version",
		"app", appKey, "version", version, "tag", quarantineTag)

	if !result.HadLatest {
		span.SetAttributes(attribute.Int("tagging.patches", result.PatchesIssued))
		return result, nil
	}

	next := PickNextLatest(prod, version)
	if next == nil {
		result.NoSuccessor = true
		log.Warn(log.CatTagging, "no successor for latest tag", "app", appKey)
		span.SetAttributes(attribute.Int("tagging.patches", result.PatchesIssued))
		return result, nil
	}

	latestTag := registry.TagLatest
	promote := registry.Patch{
		Tag:           &latestTag,
		SetProperties: backupProperty(registry.PropBackupBeforeLatest, next.Tag),
	}
	if err := s.client.PatchVersion(ctx, appKey, next.Version, promote); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("promoting %s@%s to latest: %w", appKey, next.Version, err)
	}
	result.PatchesIssued++
	result.Promoted = next.Version
	log.Info(log.CatTagging, "promoted successor to latest",
		"app", appKey, "version", next.Version)

	span.SetAttributes(attribute.Int("tagging.patches", result.PatchesIssued))
	return result, nil
}

// ClearResult reports the effect of lifting a quarantine.
type ClearResult struct {
	// Cleared is true when a quarantine tag was actually removed.
	Cleared bool
	// RestoredTag is the tag the version carries afterwards.
	RestoredTag string
	// PatchesIssued counts the mutations sent to the registry.
	PatchesIssued int
}

// ClearQuarantine lifts the quarantine on one version, restoring the tag it
// carried beforehand. The version never reclaims "latest" here; promotion is
// left to an explicit enforcement run. A version that is not quarantined is
// a no-op.
func (s *Service) ClearQuarantine(ctx context.Context, appKey, version string) (ClearResult, error) {
	ctx, span := s.tracer.Start(ctx, "tagging.clear_quarantine")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.key", appKey),
		attribute.String("app.version", version),
	)

	log.Info(log.CatTagging, "clearing quarantine", "app", appKey, "version", version)

	prod, err := s.productionVersions(ctx, appKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ClearResult{}, err
	}

	var target *registry.Version
	for i := range prod {
		if prod[i].Version == version {
			target = &prod[i]
			break
		}
	}
	if target == nil {
		err := fmt.Errorf("version %s of %s: %w", version, appKey, registry.ErrNotFound)
		span.SetStatus(codes.Error, err.Error())
		return ClearResult{}, err
	}

	if !target.IsQuarantined() {
		log.Info(log.CatTagging, "version not quarantined", "app", appKey, "version", version)
		return ClearResult{RestoredTag: target.Tag}, nil
	}

	restore := version
	if backup, ok := target.BackupTag(registry.PropBackupBeforeQuarantine); ok && backup != registry.TagLatest {
		restore = backup
	}
	patch := registry.Patch{
		Tag:              &restore,
		DeleteProperties: []string{registry.PropBackupBeforeQuarantine},
	}
	if err := s.client.PatchVersion(ctx, appKey, version, patch); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ClearResult{}, fmt.Errorf("clearing quarantine on %s@%s: %w", appKey, version, err)
	}

	log.Info(log.CatTagging, "quarantine cleared",
		"app", appKey, "version", version, "tag", restore)
	return ClearResult{Cleared: true, RestoredTag: restore, PatchesIssued: 1}, nil
}
