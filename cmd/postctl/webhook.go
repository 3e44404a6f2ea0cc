package main

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/travelpost-bot/internal/service"
	"github.com/maheshrc27/travelpost-bot/pkg/utils"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook.",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Point Telegram at the bot's webhook endpoint.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.Telegram.WebhookURL
		if len(args) == 1 {
			url = args[0]
		}
		if url == "" {
			return errors.New("no URL given and TELEGRAM_WEBHOOK_URL is not set")
		}
		if cfg.Telegram.Token == "" {
			return errors.New("TELEGRAM_TOKEN is not set")
		}

		secret := cfg.Telegram.WebhookSecret
		if secret == "" {
			generated, err := utils.GenerateWebhookSecret(43)
			if err != nil {
				return err
			}
			secret = generated
			warnColor.Fprintf(cmd.OutOrStdout(), "Generated secret, set TELEGRAM_WEBHOOK_SECRET=%s on the server\n", secret)
		}

		if err := service.NewTelegramService(*cfg).SetWebhook(cmd.Context(), url, secret); err != nil {
			return err
		}
		okColor.Fprintf(cmd.OutOrStdout(), "Webhook set to %s\n", url)
		return nil
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the webhook so the bot can poll for updates.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Telegram.Token == "" {
			return errors.New("TELEGRAM_TOKEN is not set")
		}
		if err := service.NewTelegramService(*cfg).DeleteWebhook(cmd.Context()); err != nil {
			return err
		}
		okColor.Fprintln(cmd.OutOrStdout(), "Webhook removed")
		return nil
	},
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print a random value for TELEGRAM_WEBHOOK_SECRET.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := utils.GenerateWebhookSecret(43)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func init() {
	webhookCmd.AddCommand(webhookSetCmd, webhookDeleteCmd, secretCmd)
	rootCmd.AddCommand(webhookCmd)
}
