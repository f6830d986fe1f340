package command

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/internal/scheduler"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	"go.uber.org/zap"
)

type sentMessage struct {
	Room string
	ID   string
	Text string
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	edited    map[string]string
	deleted   []string
	sendErr   error
	deleteErr error
	nextID    int
}

func (f *fakeMessenger) SendMessage(_ context.Context, room, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextID++
	id := fmt.Sprintf("bot-%d", f.nextID)
	f.sent = append(f.sent, sentMessage{Room: room, ID: id, Text: message})
	return id, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, _, messageID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.edited == nil {
		f.edited = make(map[string]string)
	}
	f.edited[messageID] = message
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return f.deleteErr
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type scheduledTask struct {
	Delay time.Duration
	Name  string
	Task  scheduler.Task
}

// fakeDeferrer records tasks instead of running them so tests control time.
type fakeDeferrer struct {
	tasks []scheduledTask
}

func (f *fakeDeferrer) After(delay time.Duration, name string, task scheduler.Task) string {
	f.tasks = append(f.tasks, scheduledTask{Delay: delay, Name: name, Task: task})
	return fmt.Sprintf("task-%d", len(f.tasks))
}

func (f *fakeDeferrer) runAll() {
	for _, t := range f.tasks {
		t.Task(context.Background())
	}
}

type fakeCorpus struct {
	corpus *domain.Corpus
	err    error
	calls  []string
}

func (f *fakeCorpus) FetchCorpus(_ context.Context, owner string) (*domain.Corpus, error) {
	f.calls = append(f.calls, owner)
	if f.err != nil {
		return nil, f.err
	}
	return f.corpus, nil
}

type fakeJournal struct {
	entries []*domain.Invocation
	err     error
}

func (f *fakeJournal) Record(_ context.Context, invocation *domain.Invocation) error {
	f.entries = append(f.entries, invocation)
	return f.err
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recordingCommand is a handler whose behaviour each test chooses.
type recordingCommand struct {
	name  string
	calls int
	run   func(ctx context.Context, cmdCtx *domain.CommandContext, args []string) error
}

func (c *recordingCommand) Name() string        { return c.name }
func (c *recordingCommand) Description() string { return "test command" }

func (c *recordingCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, args []string) error {
	c.calls++
	if c.run != nil {
		return c.run(ctx, cmdCtx, args)
	}
	return nil
}

type routerFixture struct {
	router    *Router
	messenger *fakeMessenger
	deferrer  *fakeDeferrer
	corpus    *fakeCorpus
	journal   *fakeJournal
	clock     *testClock
	deps      *Dependencies
	sleeps    []time.Duration
}

func newRouterFixture(t *testing.T, policies map[string]cooldown.Policy, extra ...Descriptor) *routerFixture {
	t.Helper()

	f := &routerFixture{
		messenger: &fakeMessenger{},
		deferrer:  &fakeDeferrer{},
		corpus:    &fakeCorpus{},
		journal:   &fakeJournal{},
		clock:     &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.deps = &Dependencies{
		Messenger: f.messenger,
		Formatter: adapter.NewResponseFormatter("!"),
		Corpus:    f.corpus,
		Scheduler: f.deferrer,
		Markov: MarkovSettings{
			Order:   1,
			Options: markov.GenerateOptions{MaxTries: 100, MaxOverlapRatio: 0.9},
		},
		NewRand:    func() *rand.Rand { return rand.New(rand.NewSource(1)) },
		BotName:    "markov-bot",
		BotVersion: "test",
		Logger:     zap.NewNop(),
	}

	var registry *Registry
	var err error
	if len(extra) > 0 {
		registry, err = NewRegistry(extra...)
	} else {
		registry, err = NewDefaultRegistry(f.deps, policies)
	}
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	f.router, err = NewRouter(RouterConfig{
		Registry:  registry,
		Adapter:   adapter.NewMessageAdapter("!"),
		Formatter: f.deps.Formatter,
		Messenger: f.messenger,
		Tracker:   cooldown.NewTrackerWithClock(f.clock.Now),
		Scheduler: f.deferrer,
		Journal:   f.journal,
		Logger:    zap.NewNop(),
		Now:       f.clock.Now,
		Sleep: func(_ context.Context, d time.Duration) {
			f.sleeps = append(f.sleeps, d)
		},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return f
}

func (f *routerFixture) message(author domain.Identity, text string) *domain.CommandContext {
	cmdCtx := domain.NewCommandContext("room-1", "Test Room", author, "msg-1", text, true)
	cmdCtx.Timestamp = f.clock.Now()
	return cmdCtx
}

var (
	alice = domain.Identity{ID: "u-alice", Name: "alice"}
	admin = domain.Identity{ID: "u-admin", Name: "boss", Permissions: []domain.Permission{domain.PermissionManageServer}}
)
