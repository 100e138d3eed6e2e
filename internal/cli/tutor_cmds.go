package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"hacker-kid/internal/service/chat"
	"hacker-kid/internal/session"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type SendFlags struct {
	ImagePath string
	AudioPath string
	Model     string
}

func (f *SendFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ImagePath, "image", f.ImagePath, "Attach an image (png, jpeg, gif, webp)")
	fs.StringVar(&f.AudioPath, "audio", f.AudioPath, "Attach a voice recording")
	fs.StringVar(&f.Model, "model", f.Model, "Tutor model override")
}

func NewSendCommand(root *RootFlags) *cobra.Command {
	f := &SendFlags{}

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message to the tutor in the active conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			service, err := rt.chat()
			if err != nil {
				return err
			}

			req, err := f.turnRequest(args)
			if err != nil {
				return err
			}

			resp, err := service.SendTurn(ctx, req)
			if resp != nil {
				printReply(cmd, resp.Reply)
				if len(resp.Unlocked) > 0 || resp.XPGained > 0 {
					printGains(cmd, resp.XPGained, resp.Unlocked, resp.Session)
				}
			}
			return err
		}),
	}

	f.BindFlags(cmd.Flags())
	return cmd
}

func (f *SendFlags) turnRequest(args []string) (chat.SendTurnRequest, error) {
	req := chat.SendTurnRequest{Model: f.Model}
	if len(args) > 0 {
		req.Text = args[0]
	}

	if f.ImagePath != "" {
		data, mimeType, err := readAttachment(f.ImagePath)
		if err != nil {
			return req, err
		}
		req.Image, req.ImageMimeType = data, mimeType
	}
	if f.AudioPath != "" {
		data, _, err := readAttachment(f.AudioPath)
		if err != nil {
			return req, err
		}
		req.AudioData = data
	}
	return req, nil
}

// readAttachment returns the file as base64 with its sniffed content type
func readAttachment(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	mimeType := http.DetectContentType(raw)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return base64.StdEncoding.EncodeToString(raw), mimeType, nil
}

func printReply(cmd *cobra.Command, reply session.Message) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Tutor:"), reply.Text)
	if reply.Translation != "" {
		fmt.Fprintf(out, "%s\n", dimStyle.Render("  "+reply.Translation))
	}
	if reply.Geheimzauber != "" {
		fmt.Fprintf(out, "%s %s\n", accentStyle.Render("  🪄 Geheimzauber:"), reply.Geheimzauber)
	}
}

func printGains(cmd *cobra.Command, xp int, unlocked []string, s session.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", successStyle.Render(fmt.Sprintf("+%d XP · level %d (%d XP)", xp, s.Level, s.XP)))
	for _, id := range unlocked {
		for _, def := range session.Catalog {
			if def.ID == id {
				fmt.Fprintf(out, "%s\n", warningStyle.Render("🏆 "+def.Icon+" "+def.Title))
			}
		}
	}
}

func NewExplainCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <text>",
		Short: "Explain a German word or phrase from the active conversation",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			service, err := rt.chat()
			if err != nil {
				return err
			}

			var surrounding string
			if active, err := rt.conversations().Active(); err == nil {
				for _, msg := range active.Messages {
					if strings.Contains(msg.Text, args[0]) {
						surrounding = msg.Text
					}
				}
			}

			explanation, err := service.Explain(ctx, args[0], surrounding)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", titleStyle.Render(args[0]+":"), explanation.Meaning)
			if explanation.Tip != "" {
				fmt.Fprintf(out, "%s\n", dimStyle.Render("  "+explanation.Tip))
			}
			return nil
		}),
	}
}

func NewTranslateCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <chinese>",
		Short: "Translate Chinese into German at your level",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			service, err := rt.chat()
			if err != nil {
				return err
			}
			german, err := service.Translate(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), german)
			return nil
		}),
	}
}

func NewShadowCommand(root *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shadow <target-sentence> <recording>",
		Short: "Score a spoken attempt at a German sentence",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(root, func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
			service, err := rt.chat()
			if err != nil {
				return err
			}

			audio, _, err := readAttachment(args[1])
			if err != nil {
				return err
			}
			format := strings.TrimPrefix(strings.ToLower(filepath.Ext(args[1])), ".")

			resp, err := service.Shadow(ctx, args[0], audio, format)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d/100\n", titleStyle.Render("Score:"), resp.Evaluation.Score)
			if resp.Evaluation.Tip != "" {
				fmt.Fprintf(out, "%s\n", dimStyle.Render("  "+resp.Evaluation.Tip))
			}
			if resp.Unlocked {
				printGains(cmd, session.AchievementBonus, []string{session.AchievementShadowMaster}, rt.controller.Current())
			}
			return nil
		}),
	}
}
