package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/failseed/internal/client/client"
	"github.com/spf13/cobra"
)

const (
	cmdFinish = "/finish"
	cmdQuit   = "/quit"
)

func (a *App) chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk through something that went wrong",
		Long: "Starts a conversation (or resumes one with --resume). Type " + cmdFinish +
			" to turn it into a growth record, " + cmdQuit + " to stop for now.",
		Args: cobra.NoArgs,
		RunE: a.runChat,
	}
	cmd.Flags().String("resume", "", "continue an unfinished conversation by id")
	return cmd
}

func (a *App) runChat(cmd *cobra.Command, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	ctx := cmd.Context()

	entryID, err := a.openConversation(ctx, cmd)
	if err != nil || entryID == "" {
		return err
	}

	for {
		line, err := GetLine(a.reader, "you> ", a.out)
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.printPaused(entryID)
				return nil
			}
			return err
		}

		switch line {
		case "":
			continue
		case cmdQuit:
			a.printPaused(entryID)
			return nil
		case cmdFinish:
			return a.finalize(ctx, entryID)
		}

		reply, err := a.api.Continue(ctx, entryID, line)
		if resources, ok := client.IsSafetyConcern(err); ok {
			a.printSafety(err, resources)
			continue
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "turn_limit_reached" {
			a.printf("%s\n", apiErr.Message)
			return a.finalize(ctx, entryID)
		}
		if err != nil {
			return err
		}
		a.printReply(reply)
	}
}

// openConversation starts a new conversation or loads the one to resume.
// An empty id with a nil error means there is nothing to continue.
func (a *App) openConversation(ctx context.Context, cmd *cobra.Command) (string, error) {
	if resume, _ := cmd.Flags().GetString("resume"); resume != "" {
		e, err := a.api.Entry(ctx, resume)
		if err != nil {
			return "", err
		}
		if e.IsCompleted {
			return "", errors.New("this conversation is already finished; see `failseed show " + e.ID + "`")
		}
		for _, m := range e.ConversationHistory {
			a.printf("%s> %s\n", speaker(m.Role), m.Content)
		}
		return e.ID, nil
	}

	text, err := GetMultiline(a.reader, "What didn't go the way you hoped?", a.out)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("nothing to talk about yet")
	}

	reply, err := a.api.Start(ctx, text)
	if resources, ok := client.IsSafetyConcern(err); ok {
		a.printSafety(err, resources)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	a.printReply(reply)
	return reply.EntryID, nil
}

func (a *App) finalize(ctx context.Context, entryID string) error {
	g, err := a.api.Finalize(ctx, entryID)
	if err != nil {
		return err
	}

	a.printf("\nGrowth:\n%s\n", g.Growth)
	if g.Hint != nil && *g.Hint != "" {
		a.printf("\nNext time:\n%s\n", *g.Hint)
	}
	if g.Category != nil {
		a.printf("\nCategory: %s\n", *g.Category)
	}
	a.printf("\nSaved as %s. Mark the hint later with `failseed hint %s tried`.\n", g.EntryID, g.EntryID)
	return nil
}

func (a *App) printReply(r *client.Reply) {
	a.printf("failseed> %s\n", r.Message)
	if r.ShouldFinalize {
		a.printf("(type %s when you're ready to wrap up)\n", cmdFinish)
	}
}

func (a *App) printSafety(err error, resources []string) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		a.printf("%s\n", apiErr.Message)
	}
	for _, r := range resources {
		a.printf("  - %s\n", r)
	}
}

func (a *App) printPaused(entryID string) {
	a.printf("\nPaused. Resume with `failseed chat --resume %s`.\n", entryID)
}

func speaker(role string) string {
	if strings.EqualFold(role, "assistant") {
		return "failseed"
	}
	return "you"
}
