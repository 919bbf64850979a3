package main

import (
	"fmt"

	"finfeed/internal/app"
	"finfeed/internal/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func rootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "finfeed",
		Short:         "Personalized financial news feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "path to the JSON config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "path to the .env file with secrets")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the ingest worker",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(opts)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				return app.Migrate(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "ingest",
			Short: "Fetch every configured feed once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				ok, failed, err := app.IngestOnce(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "feeds processed: %d ok, %d failed\n", ok, failed)
				if failed > 0 {
					return fmt.Errorf("%d feeds failed", failed)
				}
				return nil
			},
		},
	)
	return root
}

func runServe(opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("could not start application: %w", err)
	}
	return application.Run()
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
