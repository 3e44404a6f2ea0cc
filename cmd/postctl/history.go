package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show every publish attempt recorded for a post.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.PostgresURI == "" {
			return errors.New("POSTGRES_URI is not set, publish history is not recorded")
		}

		db, err := repository.ConnectPostgres(cmd.Context(), cfg.PostgresURI)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := repository.NewPostingHistoryRepository(db).GetByPostID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			dimColor.Fprintln(cmd.OutOrStdout(), "No publish attempts.")
			return nil
		}

		for _, e := range entries {
			when := e.CreatedAt.Local().Format(time.DateTime)
			if e.ErrorMessage != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", when, errColor.Sprint("failed"), e.ErrorMessage)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s message %s\n", when, okColor.Sprint("posted"), e.ChannelID, e.MessageID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
