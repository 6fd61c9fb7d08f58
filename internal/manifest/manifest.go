package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
)

// manifestVersionLayout derives the manifest version from the build time.
const manifestVersionLayout = "2006.01.02.150405"

const manifestNotes = "Auto-generated by platform-aggregator (applications & versions)"

// Manifest is the platform release document written for downstream
// consumers.
type Manifest struct {
	Version            string        `yaml:"version"`
	CreatedAt          string        `yaml:"created_at"`
	SourceStage        string        `yaml:"source_stage"`
	Applications       []Application `yaml:"applications"`
	Provenance         Provenance    `yaml:"provenance"`
	Notes              string        `yaml:"notes"`
	PlatformAppVersion string        `yaml:"platform_app_version,omitempty"`
}

// Application is one aggregated service pinned to a concrete version.
type Application struct {
	ApplicationKey string           `yaml:"application_key"`
	Version        string           `yaml:"version"`
	Sources        map[string]any   `yaml:"sources"`
	Releasables    []map[string]any `yaml:"releasables"`
}

// Provenance records the evidence requirements the manifest was built under.
type Provenance struct {
	EvidenceMinimums EvidenceMinimums `yaml:"evidence_minimums"`
}

// EvidenceMinimums names the minimum attestations required of every included
// version.
type EvidenceMinimums struct {
	SignaturesPresent bool `yaml:"signatures_present"`
}

// Build assembles a manifest for the resolved services, fetching each
// version's sources and releasables from the registry. A resolved version
// with no releasables aborts the build: it was never properly published.
func (a *Aggregator) Build(ctx context.Context, resolved []ResolvedService, sourceStage string) (*Manifest, error) {
	if sourceStage != registry.StageProd {
		return nil, fmt.Errorf("source stage %q: %w", sourceStage, ErrUnsupportedStage)
	}

	now := a.now().UTC()
	m := &Manifest{
		Version:     now.Format(manifestVersionLayout),
		CreatedAt:   now.Format(time.RFC3339),
		SourceStage: sourceStage,
		Provenance: Provenance{
			EvidenceMinimums: EvidenceMinimums{SignaturesPresent: true},
		},
		Notes: manifestNotes,
	}

	for _, svc := range resolved {
		content, err := a.client.GetVersionContent(ctx, svc.Application, svc.Version)
		if err != nil {
			return nil, fmt.Errorf("fetching content for %s@%s: %w", svc.Application, svc.Version, err)
		}
		if len(content.Releasables) == 0 {
			return nil, fmt.Errorf("%s@%s: %w", svc.Application, svc.Version, ErrNoReleasables)
		}

		m.Applications = append(m.Applications, Application{
			ApplicationKey: svc.Application,
			Version:        svc.Version,
			Sources:        content.Sources,
			Releasables:    content.Releasables,
		})
	}

	log.Info(log.CatManifest, "built platform manifest",
		"version", m.Version, "applications", len(m.Applications))
	return m, nil
}

// Write serializes the manifest to <dir>/platform-<version>.yaml, creating
// the directory when needed. Returns the written path.
func (m *Manifest) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	raw, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}

	target := filepath.Join(dir, fmt.Sprintf("platform-%s.yaml", m.Version))
	if err := os.WriteFile(target, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	log.Info(log.CatManifest, "wrote manifest", "path", target)
	return target, nil
}

// Summary renders a compact JSON digest of the manifest for CI logs.
func (m *Manifest) Summary() string {
	type appRow struct {
		ApplicationKey string `json:"application_key"`
		Version        string `json:"version"`
	}
	rows := make([]appRow, 0, len(m.Applications))
	for _, app := range m.Applications {
		rows = append(rows, appRow{ApplicationKey: app.ApplicationKey, Version: app.Version})
	}

	out, err := json.MarshalIndent(map[string]any{
		"platform_manifest_version": m.Version,
		"platform_app_version":      m.PlatformAppVersion,
		"applications":              rows,
	}, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// Publish creates the aggregate platform version in the registry, sourcing
// it from the manifest's applications.
func (a *Aggregator) Publish(ctx context.Context, platformApp string, m *Manifest, tag string) error {
	if m.PlatformAppVersion == "" {
		return fmt.Errorf("manifest has no platform application version")
	}

	sources := make([]registry.SourceVersion, 0, len(m.Applications))
	for _, app := range m.Applications {
		sources = append(sources, registry.SourceVersion{
			ApplicationKey: app.ApplicationKey,
			Version:        app.Version,
		})
	}

	req := registry.CreateVersionRequest{
		Version: m.PlatformAppVersion,
		Tag:     tag,
		Sources: sources,
	}
	if err := a.client.CreateVersion(ctx, platformApp, req); err != nil {
		return fmt.Errorf("creating platform version %s@%s: %w", platformApp, m.PlatformAppVersion, err)
	}

	log.Info(log.CatManifest, "created platform version",
		"app", platformApp, "version", m.PlatformAppVersion, "tag", tag)
	return nil
}
