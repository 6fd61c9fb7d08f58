// Package cmd provides the platform CLI: tag reconciliation commands, the
// manifest aggregator, and the webhook daemon.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bookverse/platform/internal/config"
	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
	"github.com/bookverse/platform/internal/registry/apptrust"
	"github.com/bookverse/platform/internal/tagging"
	"github.com/bookverse/platform/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "platform",
	Short: "BookVerse platform release tooling",
	Long: `Tag reconciliation and release aggregation for the BookVerse platform.

The platform CLI enforces the latest-tag invariant across an application's
published versions in the Trust Registry, handles rollback quarantining, and
aggregates per-service production versions into platform release manifests.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/platform/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging to stderr")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("registry.timeout_seconds", defaults.Registry.TimeoutSeconds)
	viper.SetDefault("auth.enabled", defaults.Auth.Enabled)
	viper.SetDefault("auth.authority", defaults.Auth.Authority)
	viper.SetDefault("auth.audience", defaults.Auth.Audience)
	viper.SetDefault("auth.algorithm", defaults.Auth.Algorithm)
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("aggregation.services_path", defaults.Aggregation.ServicesPath)
	viper.SetDefault("aggregation.output_dir", defaults.Aggregation.OutputDir)
	viper.SetDefault("aggregation.source_stage", defaults.Aggregation.SourceStage)
	viper.SetDefault("aggregation.platform_app", defaults.Aggregation.PlatformApp)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .platform/config.yaml (current directory)
		// 2. ~/.config/platform/config.yaml (user config)
		if _, err := os.Stat(".platform/config.yaml"); err == nil {
			viper.SetConfigFile(".platform/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "platform"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create one in the current
		// directory and continue with defaults on write failure.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".platform/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
	cfg.ResolveRegistry()

	if cfg.Debug || os.Getenv("PLATFORM_DEBUG") != "" {
		log.InitStderr()
	}
}

// registryClient builds the Trust Registry client from config.
func registryClient() (registry.Client, error) {
	if err := config.ValidateRegistry(cfg.Registry); err != nil {
		return nil, err
	}
	client, err := apptrust.New(apptrust.Config{
		BaseURL: cfg.Registry.BaseURL,
		Token:   cfg.Registry.Token,
		Timeout: cfg.Registry.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating registry client: %w", err)
	}
	return client, nil
}

// taggingService wires the reconciliation engine together with tracing. The
// returned shutdown function flushes pending spans.
func taggingService(cmd *cobra.Command) (*tagging.Service, func(), error) {
	client, err := registryClient()
	if err != nil {
		return nil, nil, err
	}

	if err := config.ValidateTracing(cfg.Tracing); err != nil {
		return nil, nil, err
	}
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}
	shutdown := func() {
		if err := provider.Shutdown(cmd.Context()); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}

	return tagging.NewService(client, tagging.WithTracer(provider.Tracer())), shutdown, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
