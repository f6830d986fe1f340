package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/command"
	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/iris"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Listener is the inbound side of the platform. *iris.WebSocket satisfies it.
type Listener interface {
	Connect(ctx context.Context) error
	OnMessage(callback iris.MessageCallback) func()
	OnStateChange(callback iris.StateCallback) func()
	Disconnect() error
}

// Dispatcher routes one message. *command.Router satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmdCtx *domain.CommandContext) *command.Result
}

// Shutdowner is a component stopped after the lanes drain.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

type Dependencies struct {
	Logger    *zap.Logger
	Listener  Listener
	Router    Dispatcher
	Scheduler Shutdowner
	Restart   *RestartSignal

	Name         string
	Version      string
	Presence     string
	SelfUserID   string
	AdminUserIDs []string
	LaneBuffer   int
	LaneIdle     time.Duration
	Now          func() time.Time
}

// Bot feeds inbound messages to the router. Each room has its own lane so
// messages of one room are handled in arrival order while rooms proceed
// independently.
type Bot struct {
	logger    *zap.Logger
	listener  Listener
	router    Dispatcher
	scheduler Shutdowner
	restart   *RestartSignal

	name       string
	version    string
	presence   string
	selfID     string
	admins     map[string]struct{}
	laneBuffer int
	laneIdle   time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lanes    map[string]chan *domain.CommandContext
	closed   bool
	laneWg   conc.WaitGroup
	removers []func()
}

func NewBot(deps *Dependencies) (*Bot, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependencies must not be nil")
	}
	if deps.Listener == nil || deps.Router == nil {
		return nil, fmt.Errorf("listener and router are required")
	}

	b := &Bot{
		logger:     deps.Logger,
		listener:   deps.Listener,
		router:     deps.Router,
		scheduler:  deps.Scheduler,
		restart:    deps.Restart,
		name:       deps.Name,
		version:    deps.Version,
		presence:   deps.Presence,
		selfID:     deps.SelfUserID,
		admins:     make(map[string]struct{}, len(deps.AdminUserIDs)),
		laneBuffer: deps.LaneBuffer,
		laneIdle:   deps.LaneIdle,
		now:        deps.Now,
		lanes:      make(map[string]chan *domain.CommandContext),
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.restart == nil {
		b.restart = NewRestartSignal()
	}
	if b.laneBuffer <= 0 {
		b.laneBuffer = constants.LaneConfig.Buffer
	}
	if b.laneIdle <= 0 {
		b.laneIdle = constants.LaneConfig.IdleTimeout
	}
	if b.now == nil {
		b.now = time.Now
	}
	for _, id := range deps.AdminUserIDs {
		b.admins[id] = struct{}{}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	return b, nil
}

// Start connects and blocks until ctx is cancelled or a restart is requested,
// in which case it returns ErrRestartRequested.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.removers = append(b.removers,
		b.listener.OnMessage(b.HandleMessage),
		b.listener.OnStateChange(b.onStateChange),
	)
	b.mu.Unlock()

	if err := b.listener.Connect(ctx); err != nil {
		// The listener keeps retrying in the background.
		b.logger.Warn("Initial connection failed", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		return nil
	case <-b.restart.Done():
		b.logger.Info("Restart requested", zap.String("reason", b.restart.Reason()))
		return fmt.Errorf("%w: %s", ErrRestartRequested, b.restart.Reason())
	}
}

func (b *Bot) onStateChange(state iris.WebSocketState) {
	if state != iris.WSStateConnected {
		return
	}
	b.logger.Info("Logged in",
		zap.String("name", b.name),
		zap.String("version", b.version),
		zap.String("presence", b.presence),
	)
}

// HandleMessage queues an inbound message on its room's lane. Messages sent
// by the bot itself are dropped.
func (b *Bot) HandleMessage(msg *iris.Message) {
	if b.isSelf(msg) {
		return
	}
	cmdCtx, ok := b.toCommandContext(msg)
	if !ok {
		return
	}
	b.enqueue(cmdCtx)
}

func (b *Bot) enqueue(cmdCtx *domain.CommandContext) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	lane, ok := b.lanes[cmdCtx.Room]
	if !ok {
		lane = make(chan *domain.CommandContext, b.laneBuffer)
		b.lanes[cmdCtx.Room] = lane
		room := cmdCtx.Room
		b.laneWg.Go(func() {
			b.runLane(room, lane)
		})
	}

	select {
	case lane <- cmdCtx:
	default:
		b.logger.Warn("Lane full, dropping message",
			zap.String("room", cmdCtx.Room),
			zap.String("user_id", cmdCtx.Author.ID),
		)
	}
}

func (b *Bot) runLane(room string, lane chan *domain.CommandContext) {
	idle := time.NewTimer(b.laneIdle)
	defer idle.Stop()

	for {
		select {
		case cmdCtx, ok := <-lane:
			if !ok {
				return
			}
			b.dispatch(cmdCtx)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(b.laneIdle)
		case <-idle.C:
			if b.retireLane(room, lane) {
				return
			}
			idle.Reset(b.laneIdle)
		}
	}
}

// retireLane removes an idle lane. It fails when messages arrived meanwhile.
func (b *Bot) retireLane(room string, lane chan *domain.CommandContext) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(lane) > 0 {
		return false
	}
	delete(b.lanes, room)
	return true
}

func (b *Bot) dispatch(cmdCtx *domain.CommandContext) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("Dispatch panicked",
				zap.String("room", cmdCtx.Room),
				zap.Any("panic", recovered),
			)
		}
	}()

	result := b.router.Dispatch(b.ctx, cmdCtx)
	if result == nil || !result.Handled() {
		return
	}

	fields := []zap.Field{
		zap.String("command", result.Command),
		zap.String("room", cmdCtx.Room),
		zap.String("user_id", cmdCtx.Author.ID),
		zap.Duration("duration", result.Duration),
	}
	if result.Err != nil {
		fields = append(fields, zap.String("outcome", result.Err.Kind.String()))
	}
	b.logger.Info("Command handled", fields...)
}

// Shutdown disconnects, lets queued messages finish and stops the scheduler.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	alreadyClosed := b.closed
	b.closed = true
	removers := b.removers
	b.removers = nil
	lanes := b.lanes
	b.lanes = make(map[string]chan *domain.CommandContext)
	b.mu.Unlock()

	if alreadyClosed {
		return nil
	}

	for _, remove := range removers {
		remove()
	}

	var errs []error
	if err := b.listener.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}

	for _, lane := range lanes {
		close(lane)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.laneWg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.cancel()
		<-done
		errs = append(errs, fmt.Errorf("lanes did not drain: %w", ctx.Err()))
	}
	b.cancel()

	if b.scheduler != nil {
		if err := b.scheduler.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	b.logger.Info("Bot stopped")
	return errors.Join(errs...)
}
