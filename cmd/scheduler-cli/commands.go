package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a schedule and print the weekly grid",
		Long:  "Runs the greedy assigner, or the genetic optimizer with --genetic, and prints the grid with a summary. -o writes the result as .json, .csv or .pdf.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(requestFile)
			if err != nil {
				return err
			}
			if genetic, _ := cmd.Flags().GetBool("genetic"); genetic {
				req.UseGenetic = true
			}
			if cmd.Flags().Changed("seed") {
				req.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("placeholders") {
				fill, _ := cmd.Flags().GetBool("placeholders")
				req.FillPlaceholders = &fill
			}
			output, _ := cmd.Flags().GetString("output")
			view, _ := cmd.Flags().GetString("view")

			app.logger.Debug("generate command",
				zap.String("file", requestFile),
				zap.Bool("genetic", req.UseGenetic),
				zap.Int64("seed", req.Seed))

			start := time.Now()
			resp, err := app.generator.Generate(app.ctx, *req, service.GenerateOptions{})
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			printGrid(out, resp.Result)
			printSummary(out, resp, time.Since(start))

			if output != "" {
				if err := writeResult(app.exports, resp, output, service.ExportView(view)); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nWrote %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().Bool("genetic", false, "Use the genetic optimizer")
	cmd.Flags().Int64("seed", 0, "Random seed; the same seed and request reproduce the same schedule")
	cmd.Flags().Bool("placeholders", false, "Fill cells nothing fits with Open Slot placeholders")
	cmd.Flags().StringP("output", "o", "", "Write the result to a .json, .csv or .pdf file")
	cmd.Flags().String("view", string(service.ExportViewGrid), "Layout for .csv and .pdf output: grid or list")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a request without generating",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(requestFile)
			if err != nil {
				return err
			}
			report, err := app.generator.Validate(app.ctx, *req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if !report.Valid {
				return errors.New("request is invalid")
			}
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the slot labels generated for a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(requestFile)
			if err != nil {
				return err
			}
			engineReq, err := req.ToEngine(app.cfg.Scheduler.FillPlaceholders)
			if err != nil {
				return err
			}
			universe, err := engine.Slots(engineReq)
			if err != nil {
				return err
			}
			printSlots(cmd.OutOrStdout(), universe)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the API using JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, expires, err := app.auth.IssueToken(service.TokenRequest{
				UserID: userID,
				Role:   models.UserRole(role),
				TTL:    ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("user", "", "Subject of the token")
	cmd.Flags().String("role", string(models.RoleCoordinator), "ADMIN, COORDINATOR, FACULTY or VIEWER")
	cmd.Flags().Duration("ttl", 0, "Lifetime; defaults to JWT_EXPIRATION")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
