package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaffw/readtrack/src/internal/adapters/httpapi"
	"github.com/yaffw/readtrack/src/internal/domain"
)

type options struct {
	server string
	token  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "trackctl",
		Short:        "Query and update forum read state on a Tracker API",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("READTRACK_SERVER", "http://localhost:8097"), "Tracker API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("READTRACK_TOKEN"), "bearer token (anonymous when empty)")

	rootCmd.AddCommand(unreadForumsCmd(opts))
	rootCmd.AddCommand(unreadTopicsCmd(opts))
	rootCmd.AddCommand(oldestUnreadCmd(opts))
	rootCmd.AddCommand(markForumsCmd(opts))
	rootCmd.AddCommand(markTopicCmd(opts))
	return rootCmd
}

func (o *options) client() *httpapi.Client {
	return httpapi.NewClient(o.server, o.token)
}

func unreadForumsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unread-forums",
		Short: "List forums holding unread topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forums, err := opts.client().UnreadForums(cmd.Context())
			if err != nil {
				return err
			}
			printForums(cmd.OutOrStdout(), forums)
			return nil
		},
	}
}

func unreadTopicsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unread-topics [topic-id...]",
		Short: "Show which of the given topics are unread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topics, err := opts.client().UnreadTopics(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(topics) == 0 {
				fmt.Fprintln(out, "No unread topics.")
				return nil
			}
			for _, t := range topics {
				fmt.Fprintf(out, "%s  %s  (last activity %s)\n", t.ID, t.Subject, t.LastModified().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func oldestUnreadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "oldest-unread [topic-id]",
		Short: "Show the first post of a topic the caller has not read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := opts.client().OldestUnreadPost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if post == nil {
				fmt.Fprintln(out, "No unread post.")
				return nil
			}
			fmt.Fprintf(out, "%s  %s  (%s)\n", post.ID, post.Subject, post.Created.Format(time.RFC3339))
			return nil
		},
	}
}

func markForumsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-forums [forum-id...]",
		Short: "Mark every topic of the given forums as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().MarkForumsRead(cmd.Context(), args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d forum(s) read.\n", len(args))
			return nil
		},
	}
}

func markTopicCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-topic [topic-id]",
		Short: "Mark a topic as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().MarkTopicRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked topic %s read.\n", args[0])
			return nil
		},
	}
}

func printForums(out io.Writer, forums []domain.Forum) {
	if len(forums) == 0 {
		fmt.Fprintln(out, "No unread forums.")
		return
	}
	for _, f := range forums {
		fmt.Fprintf(out, "%s%s  %s\n", strings.Repeat("  ", f.Level), f.ID, f.Name)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
