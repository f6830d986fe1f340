package command

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// MarkovCommand imitates a user by sampling a Markov chain trained on their
// comment history.
type MarkovCommand struct {
	deps *Dependencies
}

func NewMarkovCommand(deps *Dependencies) *MarkovCommand {
	return &MarkovCommand{deps: deps}
}

func (c *MarkovCommand) Name() string {
	return domain.CommandMarkov.String()
}

func (c *MarkovCommand) Description() string {
	return "Generates a sentence in the style of a Reddit user"
}

func (c *MarkovCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, args []string) error {
	if len(args) == 0 {
		return errors.NewMissingArgumentError(c.Name(), "<reddit-user>")
	}
	owner := normalizeRedditUser(args[0])

	corpus, err := c.deps.Corpus.FetchCorpus(ctx, owner)
	if err != nil {
		if isNotFound(err) {
			return errors.NewCorpusNotFoundError(c.Name(), owner)
		}
		return errors.NewCorpusFetchError(c.Name(), "fetch failed", err)
	}

	model, err := markov.Build(corpus.Fragments, c.deps.Markov.Order)
	if err != nil {
		return errors.NewModelBuildError(c.Name(), err)
	}

	sentence, err := model.Generate(c.deps.Markov.Options, c.deps.rng())
	if err != nil {
		return errors.NewGenerationError(c.Name(), err)
	}

	c.deps.logger().Debug("Generated markov sentence",
		zap.String("owner", owner),
		zap.Int("fragments", len(corpus.Fragments)),
		zap.Int("states", model.StateCount()),
		zap.Int("words", len(sentence)),
	)

	_, err = c.deps.Messenger.SendMessage(ctx, cmdCtx.Room, c.deps.Formatter.Mention(cmdCtx.Author, sentence.String()))
	return err
}

func normalizeRedditUser(raw string) string {
	user := strings.TrimSpace(raw)
	user = strings.TrimPrefix(user, "/")
	user = strings.TrimPrefix(user, "u/")
	return user
}

func isNotFound(err error) bool {
	return stderrors.Is(err, domain.ErrCorpusNotFound)
}
