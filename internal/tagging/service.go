// Package tagging implements the tag reconciliation engine: the rules that
// decide which version of an application carries the "latest" tag, how the
// tag moves between versions with an auditable backup trail, and how
// quarantine interacts with tag assignment.
//
// The engine keeps no state of its own. Every operation recomputes its
// decisions from the registry's current version list, so any run re-executed
// converges the tag state to the invariant regardless of the starting point.
// Concurrent runs against the same application are not coordinated here;
// serialization belongs to the caller, and idempotent re-enforcement is the
// recovery mechanism.
package tagging

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/bookverse/platform/internal/registry"
	"github.com/bookverse/platform/internal/semver"
)

// Service runs tag reconciliation operations against a Trust Registry.
type Service struct {
	client registry.Client
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracer attaches an OpenTelemetry tracer. Operations are no-op traced
// when unset.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService creates a reconciliation service backed by the given client.
func NewService(client registry.Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		tracer: noop.NewTracerProvider().Tracer("tagging"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// productionVersions fetches all versions of the application and filters to
// the production-eligible set.
func (s *Service) productionVersions(ctx context.Context, appKey string) ([]registry.Version, error) {
	versions, err := s.client.ListVersions(ctx, appKey)
	if err != nil {
		return nil, fmt.Errorf("listing versions for %s: %w", appKey, err)
	}

	prod := make([]registry.Version, 0, len(versions))
	for _, v := range versions {
		if v.IsProductionEligible() {
			prod = append(prod, v)
		}
	}
	return prod, nil
}

// PickNextLatest selects the highest-SemVer version among prod that is
// neither the excluded version nor quarantined. Returns nil when no
// candidate exists. Pure: issues no mutations.
func PickNextLatest(prod []registry.Version, excluded string) *registry.Version {
	candidates := make([]registry.Version, 0, len(prod))
	for _, v := range prod {
		if v.Version == excluded || v.IsQuarantined() {
			continue
		}
		candidates = append(candidates, v)
	}
	if len(candidates) == 0 {
		return nil
	}

	names := make([]string, len(candidates))
	for i, v := range candidates {
		names[i] = v.Version
	}
	highest, ok := semver.Max(names)
	if !ok {
		return nil
	}

	for i := range candidates {
		if candidates[i].Version == highest {
			picked := candidates[i]
			return &picked
		}
	}
	return nil
}

// backupProperty returns the single-element-list backup property for a tag,
// or nil when there is no tag to preserve. The registry's property schema
// stores backups as lists, never bare strings.
func backupProperty(key, tag string) map[string][]string {
	if tag == "" {
		return nil
	}
	return map[string][]string{key: {tag}}
}
