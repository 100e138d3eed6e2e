// Package cli is the terminal client: every command binds the device's
// current user, performs one intent and flushes pending sync work.
package cli

import (
	"context"
	"errors"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootFlags are shared by every command
type RootFlags struct {
	ConfigPath string
	LogLevel   string
}

func NewRootFlags() *RootFlags {
	return &RootFlags{
		ConfigPath: config.DefaultClientConfigPath(),
		LogLevel:   "warn",
	}
}

func (f *RootFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", f.ConfigPath, "Path to the client config file")
	fs.StringVar(&f.LogLevel, "log-level", f.LogLevel, "Log level (debug,info,warn,error)")
}

// NewRootCommand builds the hackerkid command tree
func NewRootCommand() *cobra.Command {
	f := NewRootFlags()

	cmd := &cobra.Command{
		Use:   "hackerkid",
		Short: "German Hacker Kid, a German tutor with cloud-synced sessions",
		Long: `hackerkid chats with an AI German tutor. Progress, conversations and
achievements are kept on this device and backed up to the sync server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.SetLevel(f.LogLevel); err != nil {
				return err
			}
			logger.UseTextFormat()
			logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	f.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		NewLoginCommand(f),
		NewLogoutCommand(f),
		NewStatusCommand(f),
		NewPullCommand(f),
		NewPushCommand(f),
		NewClearCacheCommand(f),
		NewAchievementsCommand(f),
		NewNewCommand(f),
		NewListCommand(f),
		NewSwitchCommand(f),
		NewDeleteCommand(f),
		NewLevelCommand(f),
		NewSendCommand(f),
		NewExplainCommand(f),
		NewTranslateCommand(f),
		NewShadowCommand(f),
	)

	return cmd
}

// runFunc is the body of a command that needs the local store
type runFunc func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error

// withRuntime opens the runtime, runs fn and always closes the runtime
func withRuntime(f *RootFlags, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(f.ConfigPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		runErr := fn(ctx, cmd, rt, args)
		return errors.Join(runErr, rt.close(ctx))
	}
}

// withSession is withRuntime with the current user already logged in
func withSession(f *RootFlags, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return withRuntime(f, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
		if err := rt.bind(ctx); err != nil {
			return err
		}
		return fn(ctx, cmd, rt, args)
	})
}
