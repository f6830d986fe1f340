package command

import (
	"context"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
)

type HelpCommand struct {
	deps    *Dependencies
	entries func() []adapter.HelpEntry
}

func NewHelpCommand(deps *Dependencies, entries func() []adapter.HelpEntry) *HelpCommand {
	return &HelpCommand{deps: deps, entries: entries}
}

func (c *HelpCommand) Name() string {
	return domain.CommandHelp.String()
}

func (c *HelpCommand) Description() string {
	return "Lists available commands"
}

func (c *HelpCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, _ []string) error {
	var entries []adapter.HelpEntry
	if c.entries != nil {
		entries = c.entries()
	}
	message := c.deps.Formatter.FormatHelp(c.deps.BotName, c.deps.BotVersion, entries)
	_, err := c.deps.Messenger.SendMessage(ctx, cmdCtx.Room, message)
	return err
}
