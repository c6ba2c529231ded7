package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/untold/internal/clients/rl"
	"github.com/MrSnakeDoc/untold/internal/clients/sentiment"
	"github.com/MrSnakeDoc/untold/internal/config"
	"github.com/MrSnakeDoc/untold/internal/diary"
	"github.com/MrSnakeDoc/untold/internal/feedback"
	"github.com/MrSnakeDoc/untold/internal/httpserver"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/observability"
	"github.com/MrSnakeDoc/untold/internal/redis"
	"github.com/MrSnakeDoc/untold/internal/scheduler"
	"github.com/MrSnakeDoc/untold/internal/session"
	redisstore "github.com/MrSnakeDoc/untold/internal/store/redis"
	sqlstore "github.com/MrSnakeDoc/untold/internal/store/sql"
	"github.com/MrSnakeDoc/untold/internal/utils"
	"github.com/MrSnakeDoc/untold/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *sqlstore.Store
	redisClient *goredis.Client
	cache       *redisstore.Store // nil when Redis is disabled
	memIndex    *index.MemoryIndex
	dispatcher  *feedback.Dispatcher
	syncer      *scheduler.RedisSyncer
	reloader    *scheduler.WidgetReloader // nil without a widget settings file
	gc          *scheduler.GarbageCollector
	tracing     observability.Shutdown
}

// New loads the configuration from args and wires every component. It
// fails fast when the database, or a configured Redis, is unreachable.
func New(args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, err
	}

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	tracing, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.OtelEnabled,
		ServiceName: "untold",
		Version:     version.Version,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	}, loggerClient)
	if err != nil {
		return nil, err
	}

	loggerClient.Info("opening database", logger.String("driver", cfg.DatabaseDriver))
	db, err := sqlstore.Open(sqlstore.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseDSN,
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var (
		redisClient *goredis.Client
		cache       *redisstore.Store
	)
	if cfg.RedisAddr == "" {
		loggerClient.Info("redis not configured, sessions live in memory only")
	} else {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			utils.CloseLogged(db, "database", loggerClient)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = redisstore.NewStore(redisClient, cfg.SessionTTL)
		loggerClient.Info("Redis initialized successfully")
	}

	// Collaborators
	var (
		learner     rl.Learner
		learnerMode string
	)
	if cfg.RLBaseURL != "" {
		learner = rl.New(rl.Config{BaseURL: cfg.RLBaseURL, Timeout: cfg.RLTimeout}, loggerClient)
		learnerMode = "remote"
	} else {
		learner = rl.NewLocal(loggerClient)
		learnerMode = "local-heuristic"
	}
	loggerClient.Info("layout suggester selected", logger.String("mode", learnerMode))

	var mood session.Sentiment = sentiment.Disabled{}
	if cfg.SentimentURL != "" {
		mood = sentiment.New(cfg.SentimentURL, cfg.SentimentTimeout)
	} else {
		loggerClient.Info("sentiment endpoint not configured, diaries get a neutral mood")
	}

	// Interfaces stay nil (not typed-nil) when Redis is disabled.
	var (
		deadLetters feedback.DeadLetters
		snapshots   diary.SnapshotStore
		failedList  deps.DeadLetters
	)
	if cache != nil {
		deadLetters, snapshots, failedList = cache, cache, cache
	}

	dispatcher := feedback.NewDispatcher(learner, deadLetters, component(loggerClient, "feedback"), cfg.FeedbackQueueSize, cfg.RLTimeout)
	memIndex := index.NewMemoryIndex()

	sessionDeps := session.Deps{
		Suggester: learner,
		Sentiment: mood,
		Feedback:  dispatcher,
		Now:       time.Now,
	}
	if cfg.WidgetFile != "" {
		sessionDeps.Widgets = memIndex
	}
	manager := diary.NewManager(db, snapshots, memIndex, sessionDeps, loggerClient)

	var (
		reloader      *scheduler.WidgetReloader
		reloadTrigger chan struct{}
	)
	if cfg.WidgetFile != "" {
		loggerClient.Info("widget settings configured, initializing widget reloader",
			logger.String("file", cfg.WidgetFile))
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewWidgetReloader(cfg.WidgetFile, cache, memIndex, component(loggerClient, "widget_reloader"), cfg.ReloadInterval, reloadTrigger)
	} else {
		loggerClient.Info("widget settings not configured, widget names are not checked")
	}

	var syncer *scheduler.RedisSyncer
	if cache != nil {
		syncer = scheduler.NewRedisSyncer(cache, memIndex, manager, component(loggerClient, "redis_sync"))
	}

	gc := scheduler.NewGarbageCollector(cache, memIndex, manager, component(loggerClient, "gc"),
		cfg.GCInterval, cfg.SessionIdleTTL, cfg.WidgetGCThreshold)

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		CORSOrigins:   cfg.CORSOrigins,
		Diaries:       manager,
		Learner:       learner,
		LearnerMode:   learnerMode,
		Database:      db,
		RedisClient:   redisClient,
		DeadLetters:   failedList,
		Feedback:      dispatcher,
		MemoryIndex:   memIndex,
		WidgetFile:    cfg.WidgetFile,
		ReloadTrigger: reloadTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		db:          db,
		redisClient: redisClient,
		cache:       cache,
		memIndex:    memIndex,
		dispatcher:  dispatcher,
		syncer:      syncer,
		reloader:    reloader,
		gc:          gc,
		tracing:     tracing,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Untold v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Untold %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	// Widget settings first so a file always wins over cached widgets.
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start widget reloader: %w", err)
		}
		a.logger.Info("widget reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	if a.syncer != nil {
		if err := a.syncer.Sync(ctx); err != nil {
			a.logger.Warn("failed to restore sessions from redis on startup",
				logger.Error(err))
		}
	}

	// The dispatcher outlives the signal so queued feedback is flushed on Stop.
	_ = a.dispatcher.Start(context.WithoutCancel(ctx))
	go feedback.ReportErrors(ctx, a.dispatcher.Errors(), component(a.logger, "feedback"), feedback.DefaultReportWindow)

	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("✅ Untold stopped cleanly")
	return nil
}

// close stops the workers, then releases connections.
func (a *App) close() {
	if a.reloader != nil {
		a.reloader.Stop()
	}
	a.gc.Stop()
	a.dispatcher.Stop()

	st := a.dispatcher.Stats()
	a.logger.Info("feedback dispatcher stopped",
		logger.Int64("sent", st.Sent),
		logger.Int64("failed", st.Failed),
		logger.Int64("dropped", st.Dropped))

	flushCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.tracing(flushCtx); err != nil {
		a.logger.Warn("failed to flush traces", logger.Error(err))
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	utils.CloseLogged(a.db, "database", a.logger)
	_ = a.logger.Sync()
}

func component(log logger.Logger, name string) logger.Logger {
	return log.With(logger.String("component", name))
}
