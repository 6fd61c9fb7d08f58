package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
	"github.com/bookverse/platform/internal/semver"
)

// ResolvedService is a service whose production version has been pinned for
// inclusion in a manifest.
type ResolvedService struct {
	Name        string
	Application string
	Version     string
}

// Aggregator resolves service versions and builds platform manifests against
// a Trust Registry.
type Aggregator struct {
	client registry.Client
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source used for manifest versions.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an Aggregator backed by the given client.
func NewAggregator(client registry.Client, opts ...Option) *Aggregator {
	a := &Aggregator{client: client, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve pins each configured service to its highest production-eligible
// version. Entries in overrides (service name to version) win without a
// registry lookup. Services with no production version are returned in
// missing rather than failing the whole run.
func (a *Aggregator) Resolve(ctx context.Context, services []ServiceConfig, overrides map[string]string) (resolved []ResolvedService, missing []ServiceConfig, err error) {
	for _, svc := range services {
		if v, ok := overrides[svc.Name]; ok {
			log.Info(log.CatManifest, "using version override", "service", svc.Name, "version", v)
			resolved = append(resolved, ResolvedService{
				Name:        svc.Name,
				Application: svc.Application,
				Version:     v,
			})
			continue
		}

		latest, err := a.latestProdVersion(ctx, svc.Application)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %s: %w", svc.Name, err)
		}
		if latest == "" {
			log.Warn(log.CatManifest, "no production version found", "service", svc.Name, "app", svc.Application)
			missing = append(missing, svc)
			continue
		}

		log.Info(log.CatManifest, "resolved service version", "service", svc.Name, "version", latest)
		resolved = append(resolved, ResolvedService{
			Name:        svc.Name,
			Application: svc.Application,
			Version:     latest,
		})
	}
	return resolved, missing, nil
}

// latestProdVersion returns the highest-SemVer production-eligible version
// of the application, or "" when there is none.
func (a *Aggregator) latestProdVersion(ctx context.Context, appKey string) (string, error) {
	versions, err := a.client.ListVersions(ctx, appKey)
	if err != nil {
		return "", fmt.Errorf("listing versions for %s: %w", appKey, err)
	}

	var candidates []string
	for _, v := range versions {
		if v.IsProductionEligible() {
			candidates = append(candidates, v.Version)
		}
	}
	highest, ok := semver.Max(candidates)
	if !ok {
		return "", nil
	}
	return highest, nil
}
