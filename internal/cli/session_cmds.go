package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"
	"hacker-kid/internal/storage/remote"
	"hacker-kid/internal/syncer"
	"hacker-kid/pkg/validation"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type LoginFlags struct {
	Password string
}

func (f *LoginFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Password, "password", f.Password, "Password (defaults to $HACKERKID_PASSWORD, then a prompt)")
}

func NewLoginCommand(root *RootFlags) *cobra.Command {
	f := &LoginFlags{}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and load your session from the cloud",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			username := strings.TrimSpace(args[0])
			if err := validation.NewAuthRequestValidator().ValidateUsername(username); err != nil {
				return err
			}

			password, err := resolvePassword(cmd, f.Password)
			if err != nil {
				return err
			}

			token, err := rt.remote.Login(ctx, username, password)
			var remoteErr *remote.Error
			switch {
			case err == nil:
				if token != "" {
					if err := rt.store.SaveToken(ctx, username, token); err != nil {
						logger.Log.WithError(err).Warn("Failed to store token")
					}
				}
			case errors.As(err, &remoteErr) && remoteErr.StatusCode == 0:
				logger.Log.WithError(err).Warn("Sync server unreachable, logging in offline")
			default:
				return fmt.Errorf("login failed: %w", err)
			}

			if err := rt.login(ctx, username); err != nil {
				return err
			}

			snap := rt.controller.Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Willkommen, "+username+"!"), statusBadge(snap.Status))
			printProgress(out, snap.Session)
			return nil
		}),
	}

	f.BindFlags(cmd.Flags())
	return cmd
}

// resolvePassword takes the flag, then $HACKERKID_PASSWORD, then prompts
func resolvePassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("HACKERKID_PASSWORD"); env != "" {
		return env, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func NewLogoutCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Push pending changes and log out; your data stays on this device and in the cloud",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			username := rt.controller.Snapshot().Username
			rt.controller.Logout(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s. Tschüss!\n", username)
			return nil
		}),
	}
}

func NewStatusCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and progress",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			snap := rt.controller.Snapshot()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("user"), snap.Username)
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("sync"), statusBadge(snap.Status))
			if snap.Error != "" {
				fmt.Fprintf(out, "%s%s\n", labelStyle.Render(""), errorStyle.Render(snap.Error))
			}
			if snap.LocalError != nil {
				fmt.Fprintf(out, "%s%s\n", labelStyle.Render(""), warningStyle.Render("local save failed: "+snap.LocalError.Error()))
			}
			printProgress(out, snap.Session)

			if active, ok := snap.Session.Active(); ok {
				fmt.Fprintf(out, "%s%s %s\n", labelStyle.Render("chat"), active.Title, dimStyle.Render(fmt.Sprintf("(%d messages)", len(active.Messages))))
			}
			fmt.Fprintf(out, "%s%d\n", labelStyle.Render("chats"), len(snap.Session.Conversations))
			return nil
		}),
	}
}

func printProgress(out io.Writer, s session.Session) {
	fmt.Fprintf(out, "%s%d %s\n", labelStyle.Render("level"), s.Level, dimStyle.Render(fmt.Sprintf("(%d XP)", s.XP)))
	fmt.Fprintf(out, "%s%s\n", labelStyle.Render("german"), s.GermanLevel)
}

func NewPullCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace the local session with the cloud copy",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.controller.ForcePull(ctx); err != nil {
				if errors.Is(err, syncer.ErrNoRemoteRecord) {
					fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("No cloud copy yet, nothing pulled."))
					return nil
				}
				return fmt.Errorf("pull failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pulled cloud session %s\n", statusBadge(rt.controller.Snapshot().Status))
			return nil
		}),
	}
}

func NewPushCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Save the current session to the cloud now",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.controller.ForcePush(ctx); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed session %s\n", statusBadge(rt.controller.Snapshot().Status))
			return nil
		}),
	}
}

func NewClearCacheCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete the local copy of the current user's session",
		Args:  cobra.NoArgs,
		RunE: withRuntime(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			username, ok := rt.store.CurrentUser(ctx)
			if !ok {
				return errNoCurrentUser
			}
			if err := rt.store.Clear(ctx, username); err != nil {
				return fmt.Errorf("failed to clear local cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Local cache of %s cleared. The cloud copy is restored on the next command.\n", username)
			return nil
		}),
	}
}

func NewAchievementsCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and when they were unlocked",
		Args:  cobra.NoArgs,
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			out := cmd.OutOrStdout()
			for _, a := range rt.controller.Snapshot().Achievements {
				if a.UnlockedAt == nil {
					fmt.Fprintf(out, "%s %s\n", dimStyle.Render("🔒 "+a.Title), dimStyle.Render(a.Description))
					continue
				}
				unlocked := time.UnixMilli(*a.UnlockedAt).Format("2006-01-02 15:04")
				fmt.Fprintf(out, "%s %s %s\n", successStyle.Render(a.Icon+" "+a.Title), a.Description, dimStyle.Render(unlocked))
			}
			return nil
		}),
	}
}
