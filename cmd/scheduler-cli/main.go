package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// App holds the dependencies shared by every subcommand.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	validate  *validator.Validate
	generator *service.ScheduleGeneratorService
	exports   *service.ExportService
	auth      *service.AuthService
	ctx       context.Context
}

var (
	requestFile string
	verbose     bool
	app         *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "scheduler-cli",
		Short:         "Generate weekly class schedules from a request file",
		Long:          "Runs the timetable engine locally on a YAML or JSON request without the API or a database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&requestFile, "file", "f", "", "Request file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine progress to stderr")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initApp() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Log.Format = "console"
	if verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	validate := validator.New()
	eng := engine.New(engine.Options{
		Genetic: engine.GeneticConfig{
			Population:       cfg.Scheduler.PopulationSize,
			Generations:      cfg.Scheduler.Generations,
			CrossoverRate:    cfg.Scheduler.CrossoverRate,
			MutationRate:     cfg.Scheduler.MutationRate,
			GeneMutationRate: cfg.Scheduler.GeneMutationRate,
			TournamentSize:   cfg.Scheduler.TournamentSize,
		},
		Workers: cfg.Scheduler.Workers,
		Logger:  logr.Named("engine"),
	})
	generator := service.NewScheduleGeneratorService(eng, nil, nil, nil, validate, logr, service.ScheduleGeneratorConfig{
		MaxSubjects:      cfg.Scheduler.MaxSubjects,
		FillPlaceholders: cfg.Scheduler.FillPlaceholders,
		Timeout:          cfg.Scheduler.Timeout,
	})

	app = &App{
		cfg:       cfg,
		logger:    logr,
		validate:  validate,
		generator: generator,
		exports:   service.NewExportService(generator, logr, export.NewCSVExporter(export.CSVOptions(cfg.Export.CSVDelimiter, cfg.Export.CSVBOM)...), export.NewPDFExporter()),
		auth: service.NewAuthService(validate, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		ctx: context.Background(),
	}
	return nil
}
