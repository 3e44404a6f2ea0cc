package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/spf13/cobra"
)

var (
	flagStatus string
	flagLimit  int
	flagYes    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent posts, or every post with a status.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagStatus != "" && !models.IsPostStatus(flagStatus) {
			return fmt.Errorf("unknown status %q", flagStatus)
		}

		repo, err := openPosts(cmd.Context())
		if err != nil {
			return err
		}

		var posts []*models.Post
		if flagStatus != "" {
			posts, err = repo.ListByStatus(cmd.Context(), flagStatus)
		} else {
			posts, err = repo.ListRecent(cmd.Context(), flagLimit)
		}
		if err != nil {
			return err
		}

		printPostTable(cmd.OutOrStdout(), posts)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print every field of a post.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openPosts(cmd.Context())
		if err != nil {
			return err
		}

		post, err := repo.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("post %s not found", args[0])
		}

		printPost(cmd.OutOrStdout(), post)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a post row from the table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openPosts(cmd.Context())
		if err != nil {
			return err
		}

		post, err := repo.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if post == nil {
			return fmt.Errorf("post %s not found", args[0])
		}

		if !flagYes {
			printPost(cmd.OutOrStdout(), post)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete this post? [y/N] ") {
				warnColor.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		ok, err := repo.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("post %s not found", args[0])
		}
		okColor.Fprintf(cmd.OutOrStdout(), "Post %s deleted\n", args[0])
		return nil
	},
}

var headerCmd = &cobra.Command{
	Use:   "header",
	Short: "Check the header row and rewrite it when it does not match.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openPosts(cmd.Context())
		if err != nil {
			return err
		}
		if err := repo.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		okColor.Fprintln(cmd.OutOrStdout(), "Header OK: "+strings.Join(models.PostHeaders, ", "))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&flagStatus, "status", "", "only posts with this status (draft, scheduled, posted, failed)")
	listCmd.Flags().IntVar(&flagLimit, "limit", 10, "number of recent posts to show")
	deleteCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "delete without asking")

	rootCmd.AddCommand(listCmd, showCmd, deleteCmd, headerCmd)
}

// confirm reads one line and accepts the same answers as the bot.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true
	}
	return false
}
