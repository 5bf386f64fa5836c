package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/pailas/app"
	"github.com/kilianp07/pailas/config"
	"github.com/kilianp07/pailas/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "pailas",
	Short: "Vessel allocation and fragmentation service",
	RunE:  run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the planning API",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); err != nil && os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		// the default path is optional
		return config.Load("")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// withService runs fn against a fully wired service without the HTTP
// server. Events raised by fn are delivered to the consumers before the
// service is closed. SQL backends are not reseeded.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != "memory" {
		cfg.Store.Seed = ""
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	consumers := svc.Start(ctx)
	runErr := fn(ctx, svc)
	svc.Bus.Close()
	<-consumers
	if err := svc.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("service close: %w", err)
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
