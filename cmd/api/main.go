package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/smart-support/internal/api/http"
	"github.com/spec-kit/smart-support/internal/api/http/handlers"
	"github.com/spec-kit/smart-support/internal/auth"
	"github.com/spec-kit/smart-support/internal/classify"
	"github.com/spec-kit/smart-support/internal/config"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/llm"
	"github.com/spec-kit/smart-support/internal/notify"
	"github.com/spec-kit/smart-support/internal/observability"
	"github.com/spec-kit/smart-support/internal/persistence"
	"github.com/spec-kit/smart-support/internal/service"
	"github.com/spec-kit/smart-support/internal/store"
	csvstore "github.com/spec-kit/smart-support/internal/store/csv"
	pgstore "github.com/spec-kit/smart-support/internal/store/postgres"
	sheetstore "github.com/spec-kit/smart-support/internal/store/sheet"
	"github.com/spec-kit/smart-support/internal/suggest"
	"github.com/spec-kit/smart-support/internal/ticketid"
	"github.com/spec-kit/smart-support/internal/worker"
)

// backends bundles the store implementations selected by config.
type backends struct {
	tickets         store.TicketStore
	conversations   store.ConversationStore
	recommendations store.RecommendationLog
	reporters       store.ReporterStore
	checks          []handlers.DependencyCheck
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	var redis *persistence.Redis
	if cfg.Store.Backend == config.BackendSheet || cfg.Classifier.Backend == config.ClassifierLLM {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	}

	scheme := ticketid.Scheme{
		Prefix:    cfg.Store.IDPrefix,
		Separator: cfg.Store.IDSeparator,
		Width:     cfg.Store.IDWidth,
		Max:       cfg.Store.IDMax,
	}

	stores, cleanup, err := buildBackends(ctx, cfg, scheme, redis, logger)
	if err != nil {
		logger.Fatal("failed to init store backend", zap.Error(err))
	}
	defer cleanup()

	classifier := buildClassifier(cfg, redis, logger, metrics)
	suggestions := suggest.NewIndex(suggest.DefaultCorpus, cfg.Suggest.SimilarityThreshold)
	dispatcher := events.NewInMemoryDispatcher()

	var completer service.ChatCompleter
	if cfg.LLM.APIKey != "" {
		completer = llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	}

	authService := service.NewAuthService(cfg, stores.reporters)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Tickets:         stores.tickets,
		Recommendations: stores.recommendations,
		Classifier:      classifier,
		Suggestions:     suggestions,
		Dispatcher:      dispatcher,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		Tickets:       stores.tickets,
		Conversations: stores.conversations,
		Completer:     completer,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})
	analyticsService := service.NewAnalyticsService(
		stores.tickets, stores.recommendations, dispatcher,
		cfg.Analytics.GapKeyword, cfg.Analytics.ContentGapThreshold)

	emailSender := notify.NewEmailSender(cfg.Notification)
	slackSender := notify.NewSlackSender(cfg.Notification.SlackWebhookURL)
	notificationService := service.NewNotificationService(dispatcher, emailSender, slackSender, analyticsService, logger)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.checks...),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, chatService, authService),
		Suggestions:    handlers.NewSuggestionsHandler(suggestions, classifier),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService, ticketService, notificationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("backend", cfg.Store.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildBackends selects the store implementations. The sheet backend
// keeps only the ticket table remote; conversations, reporters and the
// recommendation log stay in local CSV files alongside it.
func buildBackends(ctx context.Context, cfg *config.Config, scheme ticketid.Scheme, redis *persistence.Redis, logger *zap.Logger) (backends, func(), error) {
	cleanup := func() {}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return backends{}, cleanup, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return backends{}, cleanup, err
			}
		}
		st := pgstore.New(pgstore.Options{
			Pool:                     pg.PoolHandle(),
			Scheme:                   scheme,
			StrictReporterUniqueness: cfg.Store.StrictReporterUniqueness,
		})
		return backends{
			tickets:         st,
			conversations:   st,
			recommendations: st,
			reporters:       st,
			checks:          []handlers.DependencyCheck{{Name: "postgres", Check: pg.Ping}},
		}, pg.Close, nil

	case config.BackendSheet:
		creds, err := os.ReadFile(cfg.Sheets.CredentialsFile)
		if err != nil {
			return backends{}, cleanup, err
		}
		rows, err := sheetstore.NewSheetsClient(ctx, creds, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)
		if err != nil {
			return backends{}, cleanup, err
		}
		locker := sheetstore.NewLocalLocker()
		if redis != nil && redis.Client != nil {
			locker = sheetstore.NewRedisLocker(redis.Client, cfg.Sheets.LockKey,
				time.Duration(cfg.Sheets.LockTTLSeconds)*time.Second)
		}
		tickets := sheetstore.New(sheetstore.Options{
			Rows:                     rows,
			Locker:                   locker,
			Scheme:                   scheme,
			StrictReporterUniqueness: cfg.Store.StrictReporterUniqueness,
			Logger:                   logger,
		})
		local, err := csvstore.New(csvstore.Options{
			Dir:    cfg.Store.DataDir,
			Scheme: scheme,
			Logger: logger,
		})
		if err != nil {
			return backends{}, cleanup, err
		}
		checks := []handlers.DependencyCheck{}
		if redis != nil {
			checks = append(checks, handlers.DependencyCheck{Name: "redis", Check: redis.Ping})
		}
		return backends{
			tickets:         tickets,
			conversations:   local,
			recommendations: local,
			reporters:       local,
			checks:          checks,
		}, cleanup, nil

	default:
		st, err := csvstore.New(csvstore.Options{
			Dir:                      cfg.Store.DataDir,
			Scheme:                   scheme,
			StrictReporterUniqueness: cfg.Store.StrictReporterUniqueness,
			Logger:                   logger,
		})
		if err != nil {
			return backends{}, cleanup, err
		}
		return backends{
			tickets:         st,
			conversations:   st,
			recommendations: st,
			reporters:       st,
		}, cleanup, nil
	}
}

func buildClassifier(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger, metrics *observability.Metrics) classify.Classifier {
	if cfg.Classifier.Backend != config.ClassifierLLM {
		return classify.NewKeywordClassifier()
	}

	client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		llm.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second}))
	var cache *goredis.Client
	if redis != nil {
		cache = redis.Client
	}
	return classify.NewLLMClassifier(client, cache,
		time.Duration(cfg.Classifier.CacheTTLMinutes)*time.Minute, logger, metrics)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
