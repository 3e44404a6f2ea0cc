package main

import (
	"context"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/spf13/cobra"
)

var (
	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
	// flagEnvFile is an optional .env file to load.
	flagEnvFile string
	// flagNoColor disables colored output.
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "postctl",
	Short: "Inspect and maintain the travel posts table.",
	Long: `Inspect and maintain the travel posts table behind the bot.

It reads the same environment variables as the server, for example:
  postctl list --status draft
  postctl show lx3k9q2a1
  postctl webhook set https://bot.example.com/telegram/webhook`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" {
			return nil
		}
		if flagEnvFile != "" {
			if err := godotenv.Load(flagEnvFile); err != nil {
				return err
			}
		} else {
			// A missing .env is fine, the environment may already be set.
			_ = godotenv.Load()
		}
		if flagNoColor {
			disableColor()
		}
		cfg = config.LoadConfig()
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env", "", "path to a .env file")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

// openPosts opens the configured posts store.
func openPosts(ctx context.Context) (repository.PostRepository, error) {
	ws, err := repository.OpenWorksheet(ctx, cfg.Sheets)
	if err != nil {
		return nil, err
	}
	return repository.NewPostRepository(ws), nil
}
