package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask Sakhi one question and stream the reply to the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return ask(ctx, cfg, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
		},
	}
}

func ask(ctx context.Context, cfg config, text string, out, errOut io.Writer, logger *slog.Logger) error {
	llm, err := cfg.LLM.llm(cfg.SystemPrompt, logger)
	if err != nil {
		return err
	}

	events := &terminalEvents{out: out, errOut: errOut}
	screen := chat.NewScreen(ctx, chat.NewPipeline(llm, logger), voice.ControllerConfig{}, events, logger)
	defer screen.Close()

	reply, err := screen.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	if reply.ID == "" {
		return fmt.Errorf("message is empty")
	}
	events.finish(reply)
	return nil
}

// terminalEvents prints the assistant's reply as it streams. Only the suffix not yet printed is
// written, so the terminal shows the same incremental text a browser would.
type terminalEvents struct {
	chat.NopEvents

	out     io.Writer
	errOut  io.Writer
	printed string
}

func (t *terminalEvents) MessageAdded(msg models.Message) {
	t.show(msg)
}

func (t *terminalEvents) MessageUpdated(msg models.Message) {
	t.show(msg)
}

func (t *terminalEvents) Warn(w chat.Warning) {
	fmt.Fprintf(t.errOut, "%s %s\n", w.Title, w.Text)
}

func (t *terminalEvents) show(msg models.Message) {
	if msg.Sender != models.SenderAssistant {
		return
	}
	if rest, ok := strings.CutPrefix(msg.Text, t.printed); ok {
		fmt.Fprint(t.out, rest)
	} else {
		// A fallback replaced what was shown.
		fmt.Fprint(t.out, "\n"+msg.Text)
	}
	t.printed = msg.Text
}

func (t *terminalEvents) finish(reply models.Message) {
	t.show(reply)
	fmt.Fprintln(t.out)
}
