package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/credentials"
	"github.com/otherjamesbrown/notetakerd/pkg/autopost"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	"github.com/otherjamesbrown/notetakerd/pkg/botservice"
	"github.com/otherjamesbrown/notetakerd/pkg/buildinfo"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	"github.com/otherjamesbrown/notetakerd/pkg/genai"
	"github.com/otherjamesbrown/notetakerd/pkg/jobs"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/scheduler"
	"github.com/otherjamesbrown/notetakerd/pkg/social"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// queueName is the Redis key prefix for the deferred job queue.
const queueName = "notetakerd"

// workerPollInterval is how often the job worker checks for due jobs.
const workerPollInterval = 5 * time.Second

// Serve command flags.
var (
	serveListenAddr  string
	serveSkipMigrate bool
)

// ServeCmd runs the notetaker daemon.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notetaker daemon",
	Long: `Run the notetaker daemon.

The daemon owns the full bot lifecycle:
  - dispatches bots into meetings when the per-user join window opens
  - polls vendors for transcripts after meetings end
  - tears down vendor bot data after a grace delay once a transcript is stored
  - generates follow-up emails and social posts from stored transcripts

It also serves /metrics, /version and /healthz on the listen address.

Configuration is read from ~/.notetakerd/config.yaml and NTK_* environment
variables. Sending SIGHUP reloads the config file, so the active provider
can be switched without a restart.

Examples:
  notetakerd serve
  notetakerd serve --listen :9090
  NTK_PROVIDER=recall notetakerd serve`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().StringVar(&serveListenAddr, "listen", ":9090", "HTTP listen address for metrics and health")
	ServeCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "Skip running database migrations at startup")
}

// configHolder serves config snapshots to the scheduler and router.
// Reload swaps the snapshot atomically; readers always see a complete config.
type configHolder struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func (h *configHolder) get() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *configHolder) reload() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	holder := &configHolder{cfg: cfg}

	logger := newLogger(cfg)
	logger.Info("Starting notetakerd",
		logging.F("version", buildinfo.String()),
		logging.F("provider", string(cfg.Provider)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	if !serveSkipMigrate {
		result, err := db.RunMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("Migrations complete", logging.F("applied", len(result.Applied)))
	}

	redisClient := newRedisClient(cfg)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	credStore, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	creds, err := credStore.GetActiveCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	// Repositories.
	events := store.NewEventRepository(pool, logger)
	settings := store.NewSettingsRepository(pool, logger)
	socialConns := store.NewSocialRepository(pool, logger)
	automations := store.NewAutomationRepository(pool, logger)
	content := store.NewContentRepository(pool, logger)

	// Bot lifecycle.
	queue := jobs.NewQueue(redisClient, queueName, logger)
	secrets := botprovider.Secrets{
		RecallAPIKey:      creds.RecallAPIKey,
		MeetingBaasAPIKey: creds.MeetingBaasAPIKey,
	}
	providers := botservice.NewFactory(holder.get, secrets, logger)
	botSvc := botservice.NewService(events, queue, holder.get, providers, logger)
	sched := scheduler.New(events, settings, botSvc, queue, holder.get, scheduler.DefaultMetrics(), logger)

	worker := jobs.NewWorker(queue, workerPollInterval, logger)
	worker.Register(jobs.KindTeardownBot, sched.HandleTeardown)
	worker.Register(jobs.KindDispatchBot, func(ctx context.Context, job jobs.Job) error {
		return botSvc.DispatchForEvent(ctx, job.EventID)
	})

	// Content generation.
	generator := genai.NewOpenAI(genai.OpenAIConfig{APIKey: creds.OpenAIAPIKey}, logger)
	pipeline := autopost.New(content, content, socialConns, automations, generator, social.DefaultRegistry(), logger)

	prometheus.MustRegister(db.NewPoolStatsCollector(pool))
	httpServer := newHTTPServer(serveListenAddr, pool)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx, holder.get().Scheduler.AutoPostInterval)
	}()

	worker.Start(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", logging.F("addr", serveListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", logging.Err(err))
		}
	}()

	// SIGHUP reloads the config file so the active provider and tick
	// cadences can change without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := holder.reload(); err != nil {
					logger.Error("Config reload failed", logging.Err(err))
					continue
				}
				logger.Info("Config reloaded",
					logging.F("provider", string(holder.get().Provider)))
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", logging.Err(err))
	}

	wg.Wait()
	logger.Info("Shutdown complete")
	return nil
}

// newHTTPServer builds the observability endpoint: Prometheus metrics,
// build info, and a liveness check that pings the database.
func newHTTPServer(addr string, pool *pgxpool.Pool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/version", buildinfo.Handler("notetakerd"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
