// Command recipedex is the command line front end: ingest recipe URLs,
// rebuild the ingredient index, export a week calendar or run the API
// server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recipedex/backend/config"
	"github.com/recipedex/backend/internal/app"
	"github.com/recipedex/backend/internal/calendar"
	"github.com/recipedex/backend/internal/server"
)

var userFlag string

func main() {
	root := &cobra.Command{
		Use:           "recipedex",
		Short:         "Turn recipe web pages into structured recipes and grocery lists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&userFlag, "user", "u", "local", "user id to act as")

	root.AddCommand(ingestCmd(), reindexCmd(), exportICSCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest URL [URL...]",
		Short: "Fetch, parse and save one or more recipe pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, logger, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()

			// One bad page must not stop the rest of the batch.
			failures := 0
			for _, url := range args {
				result, err := application.Pipeline.IngestURL(ctx, userFlag, url)
				if err != nil {
					failures++
					fmt.Fprintf(os.Stderr, "failed: %s: %v\n", url, err)
					continue
				}
				fmt.Printf("saved: %s (%d ingredients, %d new)\n",
					result.Draft.Title, len(result.Ingredients), len(result.NewNames))
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d pages failed", failures, len(args))
			}
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the ingredient similarity index from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()

			n, err := application.Reindex(cmd.Context(), userFlag)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d ingredient names\n", n)
			return nil
		},
	}
}

func exportICSCmd() *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write this week's saved recipes as an ICS meal plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, logger, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()

			recipes, err := application.Recipes.ListRecipes(ctx, userFlag)
			if err != nil {
				return err
			}

			cutoff := time.Now().AddDate(0, 0, -7)
			slot := time.Now().UTC().AddDate(0, 0, 1)
			slot = time.Date(slot.Year(), slot.Month(), slot.Day(), 18, 0, 0, 0, time.UTC)

			var meals []calendar.Meal
			for _, r := range recipes {
				if r.CreatedAt.Before(cutoff) || r.Title == "unknown" {
					continue
				}
				meal := calendar.Meal{Title: r.Title, Start: slot}
				if r.SourceURL != nil {
					meal.URL = *r.SourceURL
				}
				if r.TotalMin != nil {
					meal.DurationMin = int(*r.TotalMin)
				}
				meals = append(meals, meal)
				slot = slot.AddDate(0, 0, 1)
			}

			ics := calendar.BuildWeekICS(meals)
			if err := os.WriteFile(outFile, []byte(ics), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %d meals to %s\n", len(meals), outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "week.ics", "output file")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv := server.New(application.Config.ServerHost+":"+application.Config.ServerPort,
				application.Router, logger)

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errChan:
				return err
			case <-quit:
			}
			return srv.Shutdown(context.Background())
		},
	}
}
