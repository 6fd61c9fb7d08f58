package manifest

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/semver"
)

// fallbackPlatformVersion seeds the very first platform release when the
// registry and the version map both give nothing to bump.
const fallbackPlatformVersion = "1.0.1"

// releaseTags is the rotation of tags applied to created platform versions.
var releaseTags = []string{
	"release", "hotfix", "feature", "bugfix",
	"enhancement", "security", "performance", "refactor",
}

// ReleaseTag picks the tag for a platform version from the rotation, keyed
// by CI run number.
func ReleaseTag(runNumber int) string {
	if runNumber < 0 {
		runNumber = -runNumber
	}
	return releaseTags[runNumber%len(releaseTags)]
}

// NextPlatformVersion computes the version for the next platform release:
// the patch bump of the registry's newest version, falling back to the seed
// in the version map file, and finally to a fixed initial version. Lookup
// failures degrade to the next fallback rather than aborting aggregation.
func (a *Aggregator) NextPlatformVersion(ctx context.Context, appKey, versionMapPath string) string {
	if v := a.nextFromRegistry(ctx, appKey); v != "" {
		return v
	}
	if v := nextFromSeed(versionMapPath, appKey); v != "" {
		return v
	}
	return fallbackPlatformVersion
}

func (a *Aggregator) nextFromRegistry(ctx context.Context, appKey string) string {
	versions, err := a.client.ListVersions(ctx, appKey)
	if err != nil {
		log.Warn(log.CatManifest, "failed to list platform versions", "app", appKey, "error", err)
		return ""
	}
	if len(versions) == 0 {
		return ""
	}

	// Versions arrive newest-created-first; bump the most recent one.
	next, err := semver.BumpPatch(versions[0].Version)
	if err != nil {
		return ""
	}
	return next
}

type versionMapFile struct {
	Applications []struct {
		Key   string `yaml:"key"`
		Seeds struct {
			Application string `yaml:"application"`
		} `yaml:"seeds"`
	} `yaml:"applications"`
}

func nextFromSeed(path, appKey string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	var vm versionMapFile
	if err := yaml.Unmarshal(raw, &vm); err != nil {
		return ""
	}

	for _, app := range vm.Applications {
		if app.Key != appKey {
			continue
		}
		next, err := semver.BumpPatch(app.Seeds.Application)
		if err != nil {
			return ""
		}
		return next
	}
	return ""
}
