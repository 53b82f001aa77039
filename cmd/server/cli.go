package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/phrazzld/carbonstats/internal/config"
	"github.com/phrazzld/carbonstats/internal/dataset"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCommand builds the command tree:
//
//	carbonstats [serve]          start the HTTP server (default)
//	carbonstats fetch-dataset    download the raster and exit
//
// Both accept --config/-c; every setting can also come from CARBON_*
// environment variables.
func newRootCommand() *cobra.Command {
	var configFile string
	v := config.New()

	serve := newServeCommand(v, &configFile)

	root := &cobra.Command{
		Use:           "carbonstats",
		Short:         "Asynchronous zonal statistics over the carbon sequestration raster",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newFetchDatasetCommand(v, &configFile))
	return root
}

func newServeCommand(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, v, *configFile)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().Int("max-concurrent", 0, "admission capacity (overrides task.max_concurrent)")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("task.max_concurrent", cmd.Flags().Lookup("max-concurrent"))
	return cmd
}

func newFetchDatasetCommand(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-dataset",
		Short: "Download the raster dataset and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			return dataset.NewProvider(cfg.Dataset, nil, log).Fetch(cmd.Context())
		},
	}
}

// runServe is the serve command body. The HTTP server is only started once
// the dataset has been loaded.
func runServe(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := loadConfig(v, configFile)
	if err != nil {
		return err
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_concurrent", cfg.Task.MaxConcurrent,
		"dataset_path", cfg.Dataset.Path)

	raster, err := dataset.NewProvider(cfg.Dataset, nil, log).Load(ctx)
	if err != nil {
		log.Error("dataset could not be loaded, refusing to start", "error", err)
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	app, err := newApplication(cfg, log, raster)
	if err != nil {
		_ = raster.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

func loadConfig(v *viper.Viper, configFile string) (*config.Config, error) {
	cfg, err := config.LoadFrom(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
