package command

import (
	"context"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"go.uber.org/zap"
)

// PingCommand replies "Pong!" and later edits the reply to show the round
// trip latency.
type PingCommand struct {
	deps *Dependencies
	now  func() time.Time
}

func NewPingCommand(deps *Dependencies) *PingCommand {
	return &PingCommand{deps: deps, now: time.Now}
}

func (c *PingCommand) Name() string {
	return domain.CommandPing.String()
}

func (c *PingCommand) Description() string {
	return "Measures bot latency"
}

func (c *PingCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, _ []string) error {
	room := cmdCtx.Room
	messageID, err := c.deps.Messenger.SendMessage(ctx, room, c.deps.Formatter.Pong())
	if err != nil {
		return err
	}

	latency := c.now().Sub(cmdCtx.Timestamp)
	if messageID == "" {
		return nil
	}

	c.deps.Scheduler.After(constants.CommandTiming.PingEditDelay, "edit-pong", func(taskCtx context.Context) {
		if err := c.deps.Messenger.EditMessage(taskCtx, room, messageID, c.deps.Formatter.PongLatency(latency)); err != nil {
			c.deps.logger().Warn("Failed to edit pong", zap.String("message_id", messageID), zap.Error(err))
		}
	})
	return nil
}
