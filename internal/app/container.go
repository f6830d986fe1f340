package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/adapter"
	"github.com/kapu/markov-kakao-bot-go/internal/bot"
	"github.com/kapu/markov-kakao-bot-go/internal/command"
	"github.com/kapu/markov-kakao-bot-go/internal/config"
	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/iris"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/internal/scheduler"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cache"
	"github.com/kapu/markov-kakao-bot-go/internal/service/cooldown"
	"github.com/kapu/markov-kakao-bot-go/internal/service/database"
	"github.com/kapu/markov-kakao-bot-go/internal/service/journal"
	"github.com/kapu/markov-kakao-bot-go/internal/service/reddit"
	"go.uber.org/zap"
)

// Container bundles assembled services for constructing runtime components like Bot.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Corpus  command.CorpusSource
	Restart *bot.RestartSignal

	botDeps   *bot.Dependencies
	closers   []func()
	closeOnce sync.Once
}

// NewBot instantiates a bot using the pre-built dependency graph.
func (c *Container) NewBot() (*bot.Bot, error) {
	if c == nil || c.botDeps == nil {
		return nil, fmt.Errorf("bot dependencies not initialized")
	}
	return bot.NewBot(c.botDeps)
}

// Close releases the optional cache and database connections.
func (c *Container) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			c.closers[i]()
		}
	})
}

// MarkovSettings converts the generator configuration.
func MarkovSettings(cfg *config.Config) command.MarkovSettings {
	return command.MarkovSettings{
		Order: cfg.Markov.Order,
		Options: markov.GenerateOptions{
			MaxTries:        cfg.Markov.MaxTries,
			MaxOverlapRatio: cfg.Markov.MaxOverlapRatio,
			MaxOverlapTotal: cfg.Markov.MaxOverlapTotal,
			MaxWords:        cfg.Markov.MaxWords,
			MinWords:        constants.MarkovDefaults.MinWords,
		},
	}
}

// BuildCorpusSource assembles the Reddit client, wrapped in the Redis cache
// when it is enabled. The returned closer releases the cache connection.
func BuildCorpusSource(cfg *config.Config, logger *zap.Logger) (command.CorpusSource, func(), error) {
	client := reddit.NewClient(reddit.ClientConfig{
		BaseURL:      cfg.Reddit.BaseURL,
		UserAgent:    cfg.Bot.UserAgent(),
		CommentLimit: cfg.Reddit.CommentLimit,
		Timeout:      cfg.Reddit.Timeout,
	}, logger)

	if !cfg.Redis.Enabled {
		return client, func() {}, nil
	}

	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache service: %w", err)
	}

	source := reddit.NewCachedSource(client, cacheSvc, cfg.Redis.CacheTTL, logger)
	return source, func() { _ = cacheSvc.Close() }, nil
}

// Build assembles all infrastructure services and returns a container capable of
// creating fully-wired bots. Redis and PostgreSQL are only dialled when enabled.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Messaging primitives
	irisClient := iris.NewClient(cfg.Iris.BaseURL, cfg.Iris.Token, logger)
	irisWS := iris.NewWebSocket(cfg.Iris.WSURL, cfg.Iris.Token,
		constants.WebSocketConfig.MaxReconnectAttempts,
		constants.WebSocketConfig.ReconnectDelay,
		logger,
	)
	messageAdapter := adapter.NewMessageAdapter(cfg.Bot.Prefix)
	formatter := adapter.NewResponseFormatter(cfg.Bot.Prefix)

	// Corpus source, cached when Redis is enabled
	corpus, closeCache, err := BuildCorpusSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeCache)

	// Invocation journal
	var recorder command.Journal
	if cfg.Postgres.Enabled {
		postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres service: %w", err)
		}
		closers = append(closers, func() {
			_ = postgresSvc.Close()
		})

		if err := postgresSvc.Migrate(ctx, journal.Migrations); err != nil {
			return nil, fmt.Errorf("failed to migrate journal: %w", err)
		}
		recorder = journal.NewRepository(postgresSvc, logger)
	}

	sched := scheduler.New(logger)
	restart := bot.NewRestartSignal()

	cmdDeps := &command.Dependencies{
		Messenger:  irisClient,
		Formatter:  formatter,
		Corpus:     corpus,
		Scheduler:  sched,
		Markov:     MarkovSettings(cfg),
		NewRand:    newRand(),
		Restart:    restart.Request,
		BotName:    cfg.Bot.Name,
		BotVersion: cfg.Bot.Version,
		Logger:     logger,
	}

	registry, err := command.NewDefaultRegistry(cmdDeps, cfg.Policies())
	if err != nil {
		return nil, fmt.Errorf("failed to build command registry: %w", err)
	}

	routerCfg := command.RouterConfig{
		Registry:   registry,
		Adapter:    messageAdapter,
		Formatter:  formatter,
		Messenger:  irisClient,
		Tracker:    cooldown.NewTracker(),
		Scheduler:  sched,
		Logger:     logger,
		WarningTTL: constants.CommandTiming.CooldownWarningTTL,
	}
	if recorder != nil {
		routerCfg.Journal = recorder
	}
	router, err := command.NewRouter(routerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	logger.Info("Commands registered",
		zap.Strings("commands", registry.Names()),
		zap.Int("cooldowns", len(cfg.Policies())),
		zap.Bool("corpus_cache", cfg.Redis.Enabled),
		zap.Bool("journal", cfg.Postgres.Enabled),
	)

	deps := &bot.Dependencies{
		Logger:       logger,
		Listener:     irisWS,
		Router:       router,
		Scheduler:    sched,
		Restart:      restart,
		Name:         cfg.Bot.Name,
		Version:      cfg.Bot.Version,
		Presence:     cfg.Bot.Presence,
		SelfUserID:   cfg.Bot.UserID,
		AdminUserIDs: cfg.Bot.AdminUserIDs,
		LaneBuffer:   cfg.Bot.LaneBuffer,
		LaneIdle:     constants.LaneConfig.IdleTimeout,
	}

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Corpus:  corpus,
		Restart: restart,
		botDeps: deps,
		closers: closers,
	}, nil
}

// newRand returns a generator factory. Each call gets its own source because
// *rand.Rand is not safe for concurrent use.
func newRand() func() *rand.Rand {
	var mu sync.Mutex
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func() *rand.Rand {
		mu.Lock()
		defer mu.Unlock()
		return rand.New(rand.NewSource(seed.Int63()))
	}
}
