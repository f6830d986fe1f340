package command

import (
	"context"
	"fmt"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
)

// RestartCommand asks the runtime to disconnect and exit.
type RestartCommand struct {
	deps *Dependencies
}

func NewRestartCommand(deps *Dependencies) *RestartCommand {
	return &RestartCommand{deps: deps}
}

func (c *RestartCommand) Name() string {
	return domain.CommandRestart.String()
}

func (c *RestartCommand) Description() string {
	return "Disconnects and restarts the bot"
}

func (c *RestartCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, _ []string) error {
	if c.deps.Restart == nil {
		return fmt.Errorf("restart is not wired")
	}

	if _, err := c.deps.Messenger.SendMessage(ctx, cmdCtx.Room, c.deps.Formatter.Restarting(cmdCtx.Author)); err != nil {
		return err
	}
	c.deps.Restart(fmt.Sprintf("requested by %s", cmdCtx.Author.ID))
	return nil
}
