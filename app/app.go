package presenced

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"presenced/core"
	"presenced/pkg/router"
)

type App struct {
	config      *Config
	db          *core.SQLiteDB
	context     context.Context
	server      *http.Server
	logger      *slog.Logger
	router      *router.Router
	eventRouter *core.EventRouter
	wsManager   *core.ConnManager
	coordinator *core.Coordinator

	exit chan int

	userStore    core.UserStore
	authStore    core.AuthStore
	history      core.HistoryStore
	availability core.AvailabilityStore

	authHandler    *AuthHandler
	userHandler    *UserHandler
	historyHandler *HistoryHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	app.userStore = core.NewSQLiteUserStore(app.db.DB)
	app.authStore = core.NewTokenAuthStore(app.userStore, []byte(app.config.Auth.Secret))
	app.history = core.NewSQLiteHistoryStore(app.db.DB)

	app.availability = core.NoopAvailabilityStore{}
	if app.config.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: app.config.Redis.Addr})
		app.availability = core.NewRedisAvailabilityStore(redisClient, 0)
		app.AddCleanupFunc(func(ctx context.Context) {
			redisClient.Close()
		})
	}

	var bus core.Bus = core.NoopBus{}
	if app.config.NATS.URL != "" {
		natsBus, err := core.NewNATSBus(app.config.NATS.URL)
		if err != nil {
			failed(1, "failed to connect fan-out bus: %v\n", err)
		}
		bus = natsBus
	}

	app.wsManager = core.NewConnManager(app.context, &app.wg, app.logger,
		core.WithCheckOrigin(originChecker(app.config.AllowedOrigins)))
	app.coordinator = core.NewCoordinator(app.history, app.wsManager,
		core.WithPresenceDebounce(app.config.Presence.Debounce),
		core.WithTypingTTL(app.config.Typing.TTL),
		core.WithBus(bus),
		core.WithCoordinatorLogger(app.logger),
	)
	app.AddCleanupFunc(func(ctx context.Context) {
		app.coordinator.Close()
	})
	app.wsManager.OnRegister(app.coordinator.Connect)
	app.wsManager.OnUnregister(app.coordinator.Disconnect)

	app.eventRouter = core.NewEventRouter(app.context, app.logger, app.wsManager.Receive())
	app.eventRouter.On(core.EventIdentify, app.IdentifyHandler)
	app.eventRouter.On(core.EventJoinRoom, app.JoinRoomHandler)
	app.eventRouter.On(core.EventLeaveRoom, app.LeaveRoomHandler)
	app.eventRouter.On(core.EventTypingStart, app.TypingStartHandler)
	app.eventRouter.On(core.EventTypingStop, app.TypingStopHandler)
	app.eventRouter.On(core.EventSendMessage, app.SendMessageHandler)
	app.eventRouter.On(core.EventAckDelivered, app.AckDeliveredHandler)
	app.eventRouter.On(core.EventAckRead, app.AckReadHandler)
	app.eventRouter.On(core.EventIsOnline, app.IsOnlineHandler)
	app.eventRouter.On(core.EventUpdateAvailability, app.UpdateAvailabilityHandler)
	app.eventRouter.OnError(app.reportEventError)

	app.authHandler = NewAuthHandler(app.authStore)
	app.userHandler = NewUserHandler(app.userStore)
	app.historyHandler = NewHistoryHandler(app.history, app.coordinator)
	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router = router.New(router.WithLogger(app.logger))

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.With(authMiddleware).Router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		session := core.SessionFromRequest(r)
		err := app.wsManager.Connect(session.UserID, session.Role, w, r)
		if err != nil {
			return
		}
	})

	api := router.New(router.WithLogger(app.logger))

	api.Route("/auth", func(r *router.Router) {
		r.Post("/signin", app.authHandler.SigninHandler)
		r.Post("/signout", app.authHandler.SignoutHandler)
	})

	api.Route("/users", func(r *router.Router) {
		r.Post("/", app.userHandler.RegisterUserHandler)
		r.With(authMiddleware).Get("/me", app.userHandler.MeHandler)
	})

	api.Group(func(r *router.Router) {
		r.Use(authMiddleware)
		r.Get("/rooms/{roomID}/messages", app.historyHandler.GetRoomMessagesHandler)
		r.Get("/presence/{userID}", app.historyHandler.GetPresenceHandler)
	})

	app.router.Mount("/api", api)

	app.router.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

func (app *App) Start() {
	app.eventRouter.Listen(&app.wg)

	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		var wg sync.WaitGroup

		for _, f := range app.cleanupFuncs {
			wg.Add(1)
			go func(f func(context.Context)) {
				defer wg.Done()
				f(closeCtx)
			}(f)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})
	app.logger.Info(fmt.Sprintf("presenced listening on %s:%d",
		app.config.Hostname, app.config.Port))

	err := app.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	if code != 0 {
		failed(code, "app exit with code: %d\n", code)
	} else {
		os.Exit(code)
	}
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

// originChecker builds the websocket upgrade origin check from the same
// origin list the CORS layer uses. Requests without an Origin header
// (non-browser clients) are let through.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
