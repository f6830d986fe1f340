package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	boterrors "github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// RouterConfig wires a Router. Journal, Now and Sleep are optional.
type RouterConfig struct {
	Registry   *Registry
	Adapter    *adapter.MessageAdapter
	Formatter  *adapter.ResponseFormatter
	Messenger  Messenger
	Tracker    *cooldown.Tracker
	Scheduler  Deferrer
	Journal    Journal
	Logger     *zap.Logger
	WarningTTL time.Duration
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration)
}

// Router turns inbound messages into at most one handler call and exactly one
// reply for every message addressed to a registered command.
type Router struct {
	registry   *Registry
	adapter    *adapter.MessageAdapter
	formatter  *adapter.ResponseFormatter
	messenger  Messenger
	tracker    *cooldown.Tracker
	scheduler  Deferrer
	journal    Journal
	logger     *zap.Logger
	warningTTL time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

// Result is the outcome of one dispatch. Err is nil on success.
type Result struct {
	Command  string
	Args     []string
	Err      *boterrors.CommandError
	Duration time.Duration
}

// Handled reports whether the message addressed a registered command.
func (r *Result) Handled() bool {
	return r != nil && (r.Err == nil || r.Err.Kind != boterrors.KindNotFound)
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Registry == nil || cfg.Adapter == nil || cfg.Formatter == nil {
		return nil, fmt.Errorf("router requires registry, adapter and formatter")
	}
	if cfg.Messenger == nil || cfg.Tracker == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("router requires messenger, tracker and scheduler")
	}

	r := &Router{
		registry:   cfg.Registry,
		adapter:    cfg.Adapter,
		formatter:  cfg.Formatter,
		messenger:  cfg.Messenger,
		tracker:    cfg.Tracker,
		scheduler:  cfg.Scheduler,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
		warningTTL: cfg.WarningTTL,
		now:        cfg.Now,
		sleep:      cfg.Sleep,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.warningTTL <= 0 {
		r.warningTTL = constants.CommandTiming.CooldownWarningTTL
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	return r, nil
}

// Dispatch resolves and runs the command carried by cmdCtx.Message.
func (r *Router) Dispatch(ctx context.Context, cmdCtx *domain.CommandContext) *Result {
	started := r.now()

	parsed := r.adapter.ParseMessage(cmdCtx.Message)
	if !parsed.IsCommand() {
		return &Result{Err: boterrors.NewNotFoundError("")}
	}

	desc, ok := r.registry.Lookup(parsed.Name)
	if !ok {
		r.logger.Debug("Ignoring unknown command",
			zap.String("command", parsed.Name),
			zap.String("room", cmdCtx.Room),
		)
		return &Result{Command: parsed.Name, Args: parsed.Args, Err: boterrors.NewNotFoundError(parsed.Name)}
	}

	result := &Result{Command: desc.Name, Args: parsed.Args}
	result.Err = r.run(ctx, desc, cmdCtx, parsed.Args)
	result.Duration = r.now().Sub(started)

	if result.Err != nil {
		r.report(ctx, desc, cmdCtx, parsed.Args, result.Err)
	}
	r.record(ctx, cmdCtx, result)

	if result.Err == nil && desc.Pause > 0 {
		r.sleep(ctx, desc.Pause)
	}
	return result
}

func (r *Router) run(ctx context.Context, desc Descriptor, cmdCtx *domain.CommandContext, args []string) *boterrors.CommandError {
	if !desc.Permission(cmdCtx.Author) {
		return boterrors.NewPermissionDeniedError(desc.Name)
	}

	if desc.Cooldown.Enabled() {
		key := desc.Cooldown.KeyFor(desc.Name, cmdCtx.Author.ID, cmdCtx.Room)
		if retryAfter, ok := r.tracker.Acquire(key, desc.Cooldown.Window); !ok {
			return boterrors.NewOnCooldownError(desc.Name, retryAfter, desc.Cooldown.Window)
		}
	}

	if len(args) < desc.MinArgs {
		return boterrors.NewMissingArgumentError(desc.Name, desc.Usage)
	}

	if err := r.invoke(ctx, desc, cmdCtx, args); err != nil {
		return Classify(desc.Name, err)
	}
	return nil
}

func (r *Router) invoke(ctx context.Context, desc Descriptor, cmdCtx *domain.CommandContext, args []string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered, Stack: debug.Stack()}
		}
	}()
	return desc.Handler.Execute(ctx, cmdCtx, args)
}

// PanicError carries a panic recovered from a handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Classify maps a handler error onto the command error taxonomy.
func Classify(command string, err error) *boterrors.CommandError {
	if err == nil {
		return nil
	}

	var cmdErr *boterrors.CommandError
	switch {
	case errors.As(err, &cmdErr):
		if cmdErr.BotError == nil {
			return boterrors.FromKind(cmdErr.Kind, command)
		}
		if cmdErr.Command == "" {
			cmdErr.Command = command
		}
		return cmdErr
	case errors.Is(err, domain.ErrCorpusNotFound):
		return boterrors.NewCorpusNotFoundError(command, "")
	case errors.Is(err, markov.ErrEmptyCorpus), errors.Is(err, markov.ErrInvalidOrder):
		return boterrors.NewModelBuildError(command, err)
	case errors.Is(err, markov.ErrGenerationFailed):
		return boterrors.NewGenerationError(command, err)
	default:
		return boterrors.NewUnknownError(command, err)
	}
}

func (r *Router) report(ctx context.Context, desc Descriptor, cmdCtx *domain.CommandContext, args []string, cmdErr *boterrors.CommandError) {
	who := cmdCtx.Author

	switch cmdErr.Kind {
	case boterrors.KindNotFound:
		return
	case boterrors.KindPermissionDenied:
		r.reply(ctx, cmdCtx, r.formatter.PermissionDenied(who))
	case boterrors.KindMissingArgument:
		r.reply(ctx, cmdCtx, r.formatter.MissingArguments(who, desc.Name, cmdErr.ExpectedShape))
	case boterrors.KindOnCooldown:
		r.warnCooldown(ctx, cmdCtx, cmdErr)
	case boterrors.KindCorpusFetchFailure:
		r.logger.Warn("Corpus fetch failed",
			zap.String("command", desc.Name),
			zap.Strings("args", args),
			zap.String("reason", cmdErr.Reason),
			zap.Error(cmdErr.Cause),
		)
		if cmdErr.NotFound {
			r.reply(ctx, cmdCtx, r.formatter.UserNotFound(who))
			return
		}
		r.reply(ctx, cmdCtx, r.formatter.TextChainFailed(who))
	case boterrors.KindModelBuildFailure, boterrors.KindGenerationFailure:
		r.logger.Warn("Text chain unavailable",
			zap.String("command", desc.Name),
			zap.Strings("args", args),
			zap.String("kind", cmdErr.Kind.String()),
			zap.Error(cmdErr.Cause),
		)
		r.reply(ctx, cmdCtx, r.formatter.TextChainFailed(who))
	default:
		fields := []zap.Field{
			zap.String("command", desc.Name),
			zap.Strings("args", args),
			zap.String("room", cmdCtx.Room),
			zap.String("user_id", who.ID),
			zap.Error(cmdErr.Cause),
		}
		var panicErr *PanicError
		if errors.As(cmdErr.Cause, &panicErr) {
			fields = append(fields, zap.ByteString("panic_stack", panicErr.Stack))
		}
		r.logger.Error("Ignoring exception in command", fields...)
		r.reply(ctx, cmdCtx, r.formatter.CommandFailed(desc.Name))
	}
}

// warnCooldown removes the invoking message, posts a warning and schedules
// the warning's own removal.
func (r *Router) warnCooldown(ctx context.Context, cmdCtx *domain.CommandContext, cmdErr *boterrors.CommandError) {
	room := cmdCtx.Room

	if cmdCtx.MessageID != "" {
		if err := r.messenger.DeleteMessage(ctx, room, cmdCtx.MessageID); err != nil {
			r.logger.Debug("Could not delete message on cooldown",
				zap.String("message_id", cmdCtx.MessageID),
				zap.Error(err),
			)
		}
	}

	usedAgo := cmdErr.Window - cmdErr.RetryAfter
	warningID, err := r.messenger.SendMessage(ctx, room, r.formatter.CooldownWarning(cmdCtx.Author, usedAgo, cmdErr.RetryAfter))
	if err != nil {
		r.logger.Warn("Failed to send cooldown warning", zap.String("room", room), zap.Error(err))
		return
	}
	if warningID == "" {
		return
	}

	r.scheduler.After(r.warningTTL, "delete-cooldown-warning", func(taskCtx context.Context) {
		if err := r.messenger.DeleteMessage(taskCtx, room, warningID); err != nil {
			r.logger.Debug("Could not delete cooldown warning",
				zap.String("message_id", warningID),
				zap.Error(err),
			)
		}
	})
}

func (r *Router) reply(ctx context.Context, cmdCtx *domain.CommandContext, message string) {
	if _, err := r.messenger.SendMessage(ctx, cmdCtx.Room, message); err != nil {
		r.logger.Warn("Failed to send error reply", zap.String("room", cmdCtx.Room), zap.Error(err))
	}
}

func (r *Router) record(ctx context.Context, cmdCtx *domain.CommandContext, result *Result) {
	if r.journal == nil {
		return
	}

	invocation := &domain.Invocation{
		Command:  result.Command,
		Room:     cmdCtx.Room,
		UserID:   cmdCtx.Author.ID,
		Outcome:  domain.OutcomeOK,
		Duration: result.Duration,
		At:       r.now(),
	}
	if result.Err != nil {
		invocation.Outcome = result.Err.Kind.String()
		invocation.RetryAfter = result.Err.RetryAfter
	}

	recordCtx, cancel := context.WithTimeout(ctx, constants.CommandTiming.JournalTimeout)
	defer cancel()
	if err := r.journal.Record(recordCtx, invocation); err != nil {
		r.logger.Warn("Failed to journal invocation",
			zap.String("command", result.Command),
			zap.Error(err),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
