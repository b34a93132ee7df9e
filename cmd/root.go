// Package cmd defines the CLI commands of the company-analyzer executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-analyzer/internal/analysis"
	"github.com/JakeFAU/company-analyzer/internal/app"
	"github.com/JakeFAU/company-analyzer/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the part of the application the commands drive. Tests swap in a fake
// through newApp.
type App interface {
	Run(ctx context.Context) error
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
	Close()
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	return app.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "company-analyzer",
		Short: "Builds company profiles from a company's own website.",
		Long: `company-analyzer crawls a few pages of a company website, extracts
firmographic facts, optionally enriches them from external providers,
scores the result and stores a profile with a markdown report.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newPruneCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}

// withApp runs fn against the application built by the root command and
// closes it afterwards, whether or not fn fails.
func withApp(fn func(cmd *cobra.Command, args []string, appInstance App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return fn(cmd, args, appInstance)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
