package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookverse/platform/internal/manifest"
)

var (
	aggregatePreview     bool
	aggregateOverrides   []string
	aggregateServices    string
	aggregateOutputDir   string
	aggregateSourceStage string
	aggregatePlatformApp string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate the latest production versions into a platform manifest",
	Long: `Resolve the latest production-eligible version of every configured
service, build a platform release manifest, and publish it as a new version of
the platform application. --preview builds and prints the manifest without
writing or publishing anything.

Example:
  platform aggregate --override bookverse-inventory=2.1.0 --preview`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().BoolVar(&aggregatePreview, "preview", false, "build the manifest without writing or publishing")
	aggregateCmd.Flags().StringArrayVar(&aggregateOverrides, "override", nil, "pin a service version as name=version (repeatable)")
	aggregateCmd.Flags().StringVar(&aggregateServices, "services", "", "path to the services config file")
	aggregateCmd.Flags().StringVar(&aggregateOutputDir, "output-dir", "", "directory for the manifest file")
	aggregateCmd.Flags().StringVar(&aggregateSourceStage, "source-stage", "", "stage versions are aggregated from")
	aggregateCmd.Flags().StringVar(&aggregatePlatformApp, "platform-app", "", "application key the manifest is published under")
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	agg := cfg.Aggregation
	if aggregateServices != "" {
		agg.ServicesPath = aggregateServices
	}
	if aggregateOutputDir != "" {
		agg.OutputDir = aggregateOutputDir
	}
	if aggregateSourceStage != "" {
		agg.SourceStage = aggregateSourceStage
	}
	if aggregatePlatformApp != "" {
		agg.PlatformApp = aggregatePlatformApp
	}

	overrides, err := parseOverrides(aggregateOverrides)
	if err != nil {
		return err
	}

	client, err := registryClient()
	if err != nil {
		return err
	}

	services, err := manifest.LoadServices(agg.ServicesPath)
	if err != nil {
		return fmt.Errorf("loading services from %s: %w", agg.ServicesPath, err)
	}

	aggregator := manifest.NewAggregator(client)
	resolved, missing, err := aggregator.Resolve(cmd.Context(), services, overrides)
	if err != nil {
		return fmt.Errorf("resolving service versions: %w", err)
	}
	for _, svc := range missing {
		fmt.Printf("Skipping %s: no production version found\n", svc.Name)
	}
	if len(resolved) == 0 {
		fmt.Println("No services resolved; nothing to aggregate")
		return nil
	}

	m, err := aggregator.Build(cmd.Context(), resolved, agg.SourceStage)
	if err != nil {
		return fmt.Errorf("building manifest: %w", err)
	}
	m.PlatformAppVersion = aggregator.NextPlatformVersion(cmd.Context(), agg.PlatformApp, agg.VersionMapPath)

	fmt.Println(m.Summary())

	if aggregatePreview {
		fmt.Println("Preview mode: manifest not written or published")
		return nil
	}

	path, err := m.Write(agg.OutputDir)
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	fmt.Printf("Wrote manifest to %s\n", path)

	tag := manifest.ReleaseTag(runNumber())
	if err := aggregator.Publish(cmd.Context(), agg.PlatformApp, m, tag); err != nil {
		return fmt.Errorf("publishing platform version: %w", err)
	}
	fmt.Printf("Published %s@%s (tag: %s)\n", agg.PlatformApp, m.PlatformAppVersion, tag)
	return nil
}

func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, version, ok := strings.Cut(pair, "=")
		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid override %q: expected name=version", pair)
		}
		overrides[name] = version
	}
	return overrides, nil
}

// runNumber keys the rotating release tag off the CI run counter.
func runNumber() int {
	raw := os.Getenv("GITHUB_RUN_NUMBER")
	if raw == "" {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
