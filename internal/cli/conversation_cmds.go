package cli

import (
	"context"
	"fmt"
	"hacker-kid/internal/session"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func NewNewCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation and make it active",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			id, err := rt.conversations().Create(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New conversation %s\n", accentStyle.Render(id))
			return nil
		}),
	}
}

func NewListCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			out := cmd.OutOrStdout()
			for _, info := range rt.conversations().List() {
				marker := "  "
				title := info.Title
				if info.Active {
					marker = successStyle.Render("▶ ")
					title = titleStyle.Render(title)
				}
				updated := time.UnixMilli(info.UpdatedAt).Format("01-02 15:04")
				fmt.Fprintf(out, "%s%s  %s %s\n", marker, dimStyle.Render(info.ID), title,
					dimStyle.Render(fmt.Sprintf("(%d messages, %s)", info.MessageCount, updated)))
			}
			return nil
		}),
	}
}

func NewSwitchCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <conversation-id>",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.conversations().Switch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", accentStyle.Render(args[0]))
			return nil
		}),
	}
}

func NewDeleteCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			conversations := rt.conversations()
			if err := conversations.Delete(ctx, args[0]); err != nil {
				return err
			}
			active, err := conversations.Active()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s, active conversation is now %s\n", args[0], accentStyle.Render(active.ID))
			return nil
		}),
	}
}

func NewLevelCommand(root *RootFlags) *cobra.Command {
	levels := make([]string, 0, len(session.GermanLevels))
	for _, level := range session.GermanLevels {
		levels = append(levels, string(level))
	}

	return &cobra.Command{
		Use:       "level <" + strings.Join(levels, "|") + ">",
		Short:     "Set the German level the tutor speaks at",
		Args:      cobra.ExactArgs(1),
		ValidArgs: levels,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			level := session.GermanLevel(strings.ToUpper(args[0]))
			if err := rt.conversations().SetGermanLevel(ctx, level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "German level set to %s\n", titleStyle.Render(string(level)))
			return nil
		}),
	}
}
