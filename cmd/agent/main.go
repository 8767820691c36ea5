// Command agent is the taskflow-agent server: it wires config, storage,
// the five core components (C1-C5), the recurrent schedulers, and the HTTP
// transport together, then serves until an interrupt, following the
// teacher's cmd/main.go wiring order (config -> logger -> database ->
// repositories -> services -> handlers -> routes -> graceful shutdown).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/extractor"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/config"
	"github.com/saan/taskflow-agent/internal/infrastructure/embedding"
	"github.com/saan/taskflow-agent/internal/infrastructure/events"
	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
	"github.com/saan/taskflow-agent/internal/infrastructure/lock"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/internal/infrastructure/ratelimit"
	"github.com/saan/taskflow-agent/internal/infrastructure/smtp"
	"github.com/saan/taskflow-agent/internal/infrastructure/store/postgres"
	"github.com/saan/taskflow-agent/internal/infrastructure/vectorstore"
	"github.com/saan/taskflow-agent/internal/ingestion"
	"github.com/saan/taskflow-agent/internal/nudger"
	"github.com/saan/taskflow-agent/internal/planner"
	"github.com/saan/taskflow-agent/internal/sync"
	httpTransport "github.com/saan/taskflow-agent/internal/transport/http"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting taskflow-agent...")

	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close()

	tasks := postgres.NewTaskStore(conn.DB)
	reminders := postgres.NewReminderStore(conn.DB)
	plans := postgres.NewPlanStore(conn.DB)
	energy := postgres.NewEnergyStore(conn.DB)
	feedback := postgres.NewFeedbackStore(conn.DB)
	notifications := postgres.NewNotificationStore(conn.DB)
	dependencies := postgres.NewDependencyStore(conn.DB)
	credentials := postgres.NewCredentialStore(conn.DB)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	locks := lock.NewRedisLocker(redisClient, "taskflow:")

	var eventPublisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		kp := events.NewKafkaPublisher(cfg.Kafka, log)
		defer kp.Close()
		eventPublisher = kp
	}

	// The calendar/mail/task-manager providers and the LLM are external
	// collaborators per spec §1; this deployment wires the reference stubs
	// until a concrete integration (OAuth'd HTTP clients, a hosted model) is
	// supplied. A real deployment replaces providerFactory/chatter below.
	providerFactory := &provider.StubFactory{
		Client:     provider.NewStubClient(),
		TaskClient: provider.NewStubClient(),
	}
	chatter := llm.NewStubChatter()

	clk := clock.Real{}
	limits := ratelimit.NewRegistry(toLimitMap(cfg.ProviderRateLimits))

	extr := extractor.New(chatter, log,
		extractor.WithSpamThreshold(cfg.SpamLLMThreshold),
		extractor.WithRetryBudget(cfg.LLMRetryBudget),
	)

	pipeline := &ingestion.Pipeline{
		Credentials: credentials,
		Factory:     providerFactory,
		Extractor:   extr,
		Tasks:       tasks,
		Reminders:   reminders,
		Embedder:    embedding.NewStub(16),
		Vectors:     vectorstore.NewInMemory(),
		Events:      eventPublisher,
		Limits:      limits,
		Locks:       locks,
		Clock:       clk,
		Metrics:     ingestion.NewMetrics(),
		Log:         log,
		Windows: map[domain.Source]config.IngestWindow{
			domain.SourceCalendar:    cfg.IngestWindowCalendar,
			domain.SourceMail:        cfg.IngestWindowMail,
			domain.SourceTaskManager: {},
		},
		StageTimeout: cfg.StageTimeout,
		RunTimeout:   cfg.RunTimeout,
		CallTimeout:  cfg.CallTimeout,
	}

	plnr := &planner.Planner{
		Tasks:               tasks,
		Plans:               plans,
		Energy:              energy,
		Feedback:            feedback,
		Dependencies:        dependencies,
		Chatter:             chatter,
		Log:                 log,
		RetryBudget:         cfg.LLMRetryBudget,
		Window:              cfg.WorkingWindow,
		PromotionalPatterns: cfg.PromotionalPatterns,
	}

	fb := &nudger.Feedback{Tasks: tasks, Plans: plans, Feedback: feedback, Clock: clk}

	ndgr := &nudger.Nudger{
		Plans:           plans,
		Notifications:   notifications,
		Locks:           locks,
		Clock:           clk,
		Mailer:          smtp.NewStub(),
		ResolveEmail:    func(ctx context.Context, user string) (string, bool) { return "", false },
		Log:             log,
		TickInterval:    cfg.TickInterval,
		NudgeLookahead:  cfg.NudgeLookahead,
		NudgeGrace:      cfg.NudgeGrace,
		PerUserBudget:   cfg.PerUserBudget,
		TickOuterBudget: cfg.TickOuterBudget,
	}

	syncEngine := &sync.Engine{
		Credentials: credentials,
		Tasks:       tasks,
		Factory:     providerFactory,
		Events:      eventPublisher,
		Clock:       clk,
		Log:         log,
	}
	scheduler := sync.NewScheduler(syncEngine, log)
	scheduler.Start()
	defer scheduler.Stop()

	handler := &httpTransport.Handler{
		Pipeline:      pipeline,
		Planner:       plnr,
		Feedback:      fb,
		Nudger:        ndgr,
		SyncEngine:    syncEngine,
		Tasks:         tasks,
		Reminders:     reminders,
		Energy:        energy,
		Notifications: notifications,
		Log:           log,
	}
	router := httpTransport.SetupRoutes(handler, log)

	runCtx, cancelRun := context.WithCancel(context.Background())
	go ndgr.Run(runCtx)
	defer ndgr.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	} else {
		log.Info("shutdown complete")
	}
}

func toLimitMap(in map[domain.Provider]config.RateLimit) map[domain.Provider]ratelimit.Limit {
	out := make(map[domain.Provider]ratelimit.Limit, len(in))
	for k, v := range in {
		out[k] = ratelimit.Limit{RefillPerSecond: v.RefillPerSecond, Burst: v.Burst}
	}
	return out
}
