package command

import (
	"context"
	"math/rand"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/internal/scheduler"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	"go.uber.org/zap"
)

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, cmdCtx *domain.CommandContext, args []string) error
}

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	SendMessage(ctx context.Context, room, message string) (string, error)
	EditMessage(ctx context.Context, room, messageID, message string) error
	DeleteMessage(ctx context.Context, room, messageID string) error
}

// CorpusSource returns the text history of an owner. Unknown owners yield an
// error wrapping domain.ErrCorpusNotFound.
type CorpusSource interface {
	FetchCorpus(ctx context.Context, owner string) (*domain.Corpus, error)
}

// Deferrer runs delayed actions without blocking the caller.
type Deferrer interface {
	After(delay time.Duration, name string, task scheduler.Task) string
}

// Journal stores dispatch outcomes.
type Journal interface {
	Record(ctx context.Context, invocation *domain.Invocation) error
}

// PermissionCheck decides whether an identity may run a command.
type PermissionCheck func(who domain.Identity) bool

// Everyone allows any identity.
func Everyone() PermissionCheck {
	return func(domain.Identity) bool { return true }
}

// RequireAny allows identities holding at least one of perms.
func RequireAny(perms ...domain.Permission) PermissionCheck {
	return func(who domain.Identity) bool {
		for _, p := range perms {
			if who.Has(p) {
				return true
			}
		}
		return false
	}
}

// Descriptor is the registry entry of a command: the handler plus everything
// the router checks before calling it.
type Descriptor struct {
	Name        string
	Aliases     []string
	Description string
	// Usage documents the argument shape, e.g. "<reddit-user>".
	Usage   string
	MinArgs int
	// Permission defaults to Everyone when nil.
	Permission PermissionCheck
	Cooldown   cooldown.Policy
	// Pause delays the next message of the same channel after a success.
	Pause   time.Duration
	Handler Command
}

// MarkovSettings tunes the markov command.
type MarkovSettings struct {
	Order   int
	Options markov.GenerateOptions
}

type Dependencies struct {
	Messenger  Messenger
	Formatter  *adapter.ResponseFormatter
	Corpus     CorpusSource
	Scheduler  Deferrer
	Markov     MarkovSettings
	NewRand    func() *rand.Rand
	Restart    func(reason string)
	BotName    string
	BotVersion string
	Logger     *zap.Logger
}

func (d *Dependencies) rng() *rand.Rand {
	if d.NewRand != nil {
		return d.NewRand()
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (d *Dependencies) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
