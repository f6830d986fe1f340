package command

import (
	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
)

// NewDefaultRegistry registers the bot's commands. policies overrides the
// cooldown of a command by canonical name; commands without an entry have no
// cooldown.
func NewDefaultRegistry(deps *Dependencies, policies map[string]cooldown.Policy) (*Registry, error) {
	admin := RequireAny(domain.PermissionAdministrator, domain.PermissionManageServer)

	var registry *Registry
	help := NewHelpCommand(deps, func() []adapter.HelpEntry {
		return registry.HelpEntries()
	})

	registry, err := NewRegistry(
		Descriptor{
			Name:        domain.CommandMarkov.String(),
			Description: "Imitates a Reddit user",
			Usage:       "<reddit-user>",
			MinArgs:     1,
			Permission:  Everyone(),
			Cooldown:    policies[domain.CommandMarkov.String()],
			Pause:       constants.CommandTiming.MarkovReplyPause,
			Handler:     NewMarkovCommand(deps),
		},
		Descriptor{
			Name:        domain.CommandPing.String(),
			Description: "Measures latency",
			Permission:  admin,
			Cooldown:    policies[domain.CommandPing.String()],
			Handler:     NewPingCommand(deps),
		},
		Descriptor{
			Name:        domain.CommandHelp.String(),
			Aliases:     []string{"commands"},
			Description: "Lists commands",
			Permission:  Everyone(),
			Cooldown:    policies[domain.CommandHelp.String()],
			Handler:     help,
		},
		Descriptor{
			Name:        domain.CommandRestart.String(),
			Description: "Restarts the bot",
			Permission:  admin,
			Cooldown:    policies[domain.CommandRestart.String()],
			Handler:     NewRestartCommand(deps),
		},
	)
	if err != nil {
		return nil, err
	}
	return registry, nil
}
