package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	boterrors "github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markovPolicy() map[string]cooldown.Policy {
	return map[string]cooldown.Policy{
		"markov": {Window: 10 * time.Second, Scope: cooldown.ScopeUser},
	}
}

func TestDispatchMarkovRepliesWithMention(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.corpus.corpus = &domain.Corpus{Owner: "spez", Fragments: []string{"a b c", "d b e"}}

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov u/spez"))

	require.Nil(t, result.Err)
	assert.Equal(t, []string{"spez"}, f.corpus.calls)
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, []string{"@alice a b e", "@alice d b c"}, f.messenger.sent[0].Text)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeps)
}

func TestDispatchEmptyCorpusReportsTextChainFailure(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.corpus.corpus = &domain.Corpus{Owner: "quiet"}

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov quiet"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindModelBuildFailure, result.Err.Kind)
	assert.Equal(t, []string{"@alice Unable to build text chain."}, f.messenger.texts())
	assert.Empty(t, f.sleeps)
}

func TestDispatchUnknownOwnerReportsUserNotFound(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.corpus.err = fmt.Errorf("reddit: %w", domain.ErrCorpusNotFound)

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov ghost"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindCorpusFetchFailure, result.Err.Kind)
	assert.True(t, result.Err.NotFound)
	assert.Equal(t, []string{"@alice User not found."}, f.messenger.texts())
}

func TestDispatchFetchFailureReportsTextChainFailure(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.corpus.err = errors.New("connection reset")

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov someone"))

	require.NotNil(t, result.Err)
	assert.ErrorIs(t, result.Err, boterrors.ErrCorpusFetchFailure)
	assert.Equal(t, []string{"@alice Unable to build text chain."}, f.messenger.texts())
}

func TestDispatchPermissionDenied(t *testing.T) {
	f := newRouterFixture(t, map[string]cooldown.Policy{
		"ping": {Window: 5 * time.Second, Scope: cooldown.ScopeChannel},
	})

	result := f.router.Dispatch(context.Background(), f.message(alice, "!ping"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindPermissionDenied, result.Err.Kind)
	assert.Equal(t, []string{"@alice You don't have permission to use this command."}, f.messenger.texts())
	assert.Empty(t, f.deferrer.tasks, "handler must not run")

	// The denied call must leave the room's ping window untouched.
	f.messenger.sent = nil
	result = f.router.Dispatch(context.Background(), f.message(admin, "!ping"))
	require.Nil(t, result.Err)
	assert.Equal(t, []string{"Pong!"}, f.messenger.texts())
}

func TestDispatchCooldownWarning(t *testing.T) {
	f := newRouterFixture(t, markovPolicy())
	f.corpus.corpus = &domain.Corpus{Owner: "spez", Fragments: []string{"a b c", "d b e"}}

	first := f.router.Dispatch(context.Background(), f.message(alice, "!markov spez"))
	require.Nil(t, first.Err)

	f.clock.Advance(3 * time.Second)
	f.messenger.sent = nil
	second := f.router.Dispatch(context.Background(), f.message(alice, "!markov spez"))

	require.NotNil(t, second.Err)
	assert.Equal(t, boterrors.KindOnCooldown, second.Err.Kind)
	assert.Equal(t, 7*time.Second, second.Err.RetryAfter)
	assert.Equal(t, []string{"msg-1"}, f.messenger.deleted, "invoking message is removed")
	assert.Equal(t,
		[]string{"@alice This command was used 3.00s ago and is on cooldown. Try again in 7.00s."},
		f.messenger.texts())
	assert.Len(t, f.corpus.calls, 1, "handler must not run while on cooldown")

	require.Len(t, f.deferrer.tasks, 1)
	assert.Equal(t, 10*time.Second, f.deferrer.tasks[0].Delay)

	warningID := f.messenger.sent[0].ID
	f.deferrer.runAll()
	assert.Equal(t, []string{"msg-1", warningID}, f.messenger.deleted)
}

func TestDispatchCooldownSwallowsDeleteFailure(t *testing.T) {
	f := newRouterFixture(t, markovPolicy())
	f.corpus.corpus = &domain.Corpus{Owner: "spez", Fragments: []string{"a b c", "d b e"}}
	f.messenger.deleteErr = errors.New("missing permission")

	f.router.Dispatch(context.Background(), f.message(alice, "!markov spez"))
	f.clock.Advance(time.Second)
	f.messenger.sent = nil

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov spez"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindOnCooldown, result.Err.Kind)
	assert.Len(t, f.messenger.texts(), 1, "warning still posted")
}

func TestDispatchCooldownIsPerUser(t *testing.T) {
	f := newRouterFixture(t, markovPolicy())
	f.corpus.corpus = &domain.Corpus{Owner: "spez", Fragments: []string{"a b c", "d b e"}}

	require.Nil(t, f.router.Dispatch(context.Background(), f.message(alice, "!markov spez")).Err)
	bob := domain.Identity{ID: "u-bob", Name: "bob"}
	require.Nil(t, f.router.Dispatch(context.Background(), f.message(bob, "!markov spez")).Err)

	f.clock.Advance(10 * time.Second)
	require.Nil(t, f.router.Dispatch(context.Background(), f.message(alice, "!markov spez")).Err)
}

func TestDispatchUnknownCommandIsSilent(t *testing.T) {
	f := newRouterFixture(t, nil)

	result := f.router.Dispatch(context.Background(), f.message(alice, "!teleport home"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindNotFound, result.Err.Kind)
	assert.False(t, result.Handled())
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.journal.entries)
}

func TestDispatchIgnoresPlainMessages(t *testing.T) {
	f := newRouterFixture(t, nil)

	result := f.router.Dispatch(context.Background(), f.message(alice, "hello there"))

	assert.False(t, result.Handled())
	assert.Empty(t, f.messenger.sent)
}

func TestDispatchMissingArguments(t *testing.T) {
	f := newRouterFixture(t, nil)

	result := f.router.Dispatch(context.Background(), f.message(alice, "!markov"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindMissingArgument, result.Err.Kind)
	assert.Equal(t, "<reddit-user>", result.Err.ExpectedShape)
	assert.Equal(t, []string{"@alice You are missing required arguments.\n!markov <reddit-user>"}, f.messenger.texts())
	assert.Empty(t, f.corpus.calls)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	boom := &recordingCommand{name: "boom", run: func(context.Context, *domain.CommandContext, []string) error {
		panic("kaboom")
	}}
	f := newRouterFixture(t, nil, Descriptor{Name: "boom", Handler: boom})

	result := f.router.Dispatch(context.Background(), f.message(alice, "!boom"))

	require.NotNil(t, result.Err)
	assert.Equal(t, boterrors.KindUnknown, result.Err.Kind)
	var panicErr *PanicError
	require.ErrorAs(t, result.Err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.Equal(t, []string{"An error occurred while processing the `boom` command."}, f.messenger.texts())
}

func TestDispatchSendsExactlyOneReplyPerOutcome(t *testing.T) {
	failures := map[string]error{
		"unknown":  errors.New("plain failure"),
		"sentinel": boterrors.ErrGenerationFailure,
		"typed":    boterrors.NewModelBuildError("", errors.New("empty")),
	}

	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			handler := &recordingCommand{name: "fail", run: func(context.Context, *domain.CommandContext, []string) error {
				return failure
			}}
			f := newRouterFixture(t, nil, Descriptor{Name: "fail", Handler: handler})

			result := f.router.Dispatch(context.Background(), f.message(alice, "!fail"))

			require.NotNil(t, result.Err)
			assert.Equal(t, 1, handler.calls)
			assert.Len(t, f.messenger.sent, 1)
			require.Len(t, f.journal.entries, 1)
			assert.Equal(t, result.Err.Kind.String(), f.journal.entries[0].Outcome)
		})
	}
}

func TestDispatchResolvesAliasesCaseInsensitively(t *testing.T) {
	f := newRouterFixture(t, nil)

	result := f.router.Dispatch(context.Background(), f.message(alice, "!COMMANDS"))

	require.Nil(t, result.Err)
	assert.Equal(t, "help", result.Command)
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Text, "!markov <reddit-user>")
}

func TestDispatchJournalFailureDoesNotAffectReply(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.journal.err = errors.New("db down")

	result := f.router.Dispatch(context.Background(), f.message(admin, "!ping"))

	require.Nil(t, result.Err)
	assert.Equal(t, []string{"Pong!"}, f.messenger.texts())
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, domain.OutcomeOK, f.journal.entries[0].Outcome)
}

func TestPingSchedulesLatencyEdit(t *testing.T) {
	f := newRouterFixture(t, nil)
	ping := NewPingCommand(f.deps)
	sentAt := f.clock.Now()
	ping.now = func() time.Time { return sentAt.Add(42 * time.Millisecond) }

	cmdCtx := f.message(admin, "!ping")
	require.NoError(t, ping.Execute(context.Background(), cmdCtx, nil))

	require.Len(t, f.deferrer.tasks, 1)
	assert.Equal(t, 500*time.Millisecond, f.deferrer.tasks[0].Delay)
	f.deferrer.runAll()
	assert.Equal(t, "Pong! `42ms`", f.messenger.edited[f.messenger.sent[0].ID])
}

func TestRestartInvokesCallback(t *testing.T) {
	f := newRouterFixture(t, nil)
	var reasons []string
	f.deps.Restart = func(reason string) { reasons = append(reasons, reason) }

	result := f.router.Dispatch(context.Background(), f.message(admin, "!restart"))

	require.Nil(t, result.Err)
	assert.Equal(t, []string{"@boss Restarting..."}, f.messenger.texts())
	assert.Equal(t, []string{"requested by u-admin"}, reasons)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want boterrors.CommandErrorKind
	}{
		{"corpus not found", fmt.Errorf("wrap: %w", domain.ErrCorpusNotFound), boterrors.KindCorpusFetchFailure},
		{"sentinel", boterrors.ErrOnCooldown, boterrors.KindOnCooldown},
		{"generic", errors.New("x"), boterrors.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("markov", tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, "markov", got.Command)
		})
	}
	assert.Nil(t, Classify("markov", nil))
}
