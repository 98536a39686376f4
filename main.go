package main

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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"luxemap/estates/internal/api"
	"luxemap/estates/internal/cache"
	"luxemap/estates/internal/captcha"
	"luxemap/estates/internal/chat"
	"luxemap/estates/internal/config"
	"luxemap/estates/internal/db"
	"luxemap/estates/internal/email"
	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/imagegen"
	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/services"
	"luxemap/estates/internal/site"
	"luxemap/estates/internal/storage"
	"luxemap/estates/internal/tasks"
)

const (
	sessionJanitorInterval = time.Minute
	shutdownTimeout        = 15 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:           "luxemapd",
		Short:         "LuxeMap Estates site backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(vcardCmd())
	root.AddCommand(tokenCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var runMode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the public API and/or task workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch runMode {
			case "api", "bg", "img", "all":
			default:
				return fmt.Errorf("invalid run mode %q (expected api, bg, img or all)", runMode)
			}
			return runServe(runMode)
		},
	}
	cmd.Flags().StringVarP(&runMode, "mode", "m", "all", "Run mode: api, bg, img, all")
	return cmd
}

func runServe(runMode string) error {
	cfg, err := config.Load(runMode)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(cfg.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := fixtures.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog fixtures: %w", err)
	}

	// --- Optional datastores ---
	var mongoDb *mongo.Database
	if cfg.MongoURI != "" {
		mongoClient, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() {
			if err := db.DisconnectDB(mongoClient); err != nil {
				logging.Logger.Errorf("Error disconnecting from MongoDB: %v", err)
			}
		}()
		mongoDb = database
	} else {
		logging.Logger.Warn("MONGO_URI not set, enquiries will not be persisted")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			if err := cache.DisconnectRedis(redisClient); err != nil {
				logging.Logger.Errorf("Error disconnecting from Redis: %v", err)
			}
		}()
	} else {
		logging.Logger.Warn("REDIS_ADDR not set, running without task queue and with in-memory saved sets")
	}

	// --- Email ---
	var extraSenders []email.Sender
	if cfg.MockServices && redisClient != nil {
		logging.Logger.Info("MOCK_SERVICES enabled, capturing emails in Redis")
		extraSenders = append(extraSenders, email.NewRedisSender(redisClient, cfg.SmtpFromAddress))
	}
	if cfg.EmailLogFile != "" {
		fileSender, err := email.NewFileEmailSender(cfg.EmailLogFile, cfg.SmtpFromAddress)
		if err != nil {
			return fmt.Errorf("failed to open email log file: %w", err)
		}
		logging.Logger.Infof("Logging emails to %s", cfg.EmailLogFile)
		extraSenders = append(extraSenders, fileSender)
	}
	sender := email.NewSenderFromConfig(cfg, extraSenders...)

	// --- Services ---
	var enquiryStore services.EnquiryStore
	var subscriberStore services.SubscriberStore
	var enquiryRepo *db.EnquiryRepository
	if mongoDb != nil {
		enquiryRepo = db.NewEnquiryRepository(mongoDb)
		enquiryStore = enquiryRepo
		subscriberStore = db.NewSubscriberRepository(mongoDb)
	}

	var taskClient *asynq.Client
	var enqueuer tasks.IAsynqClient
	if redisClient != nil {
		taskClient = tasks.NewClient(redisClient)
		defer taskClient.Close()
		enqueuer = taskClient
	}

	overrides := services.NewImageOverrides(redisClient)
	propertySvc := services.NewPropertyService(cfg, catalog, overrides)
	agentSvc := services.NewAgentService(catalog)
	contentSvc := services.NewContentService(catalog)
	savedSvc := services.NewSavedService(catalog, redisClient, cfg.SessionIdleTTL)
	enquirySvc := services.NewEnquiryService(cfg, catalog, enquiryStore, enqueuer)
	newsletterSvc := services.NewNewsletterService(subscriberStore, enqueuer)

	var enhancer tasks.GalleryEnhancer
	if cfg.ImageEnhanceEnabled {
		s3Store, err := storage.NewS3Storage(ctx, cfg)
		if err != nil {
			logging.Logger.Errorf("Image enhancement disabled: %v", err)
		}
		generator, genErr := imagegen.NewClient(ctx, cfg)
		if genErr != nil {
			logging.Logger.Errorf("Image enhancement disabled: %v", genErr)
		}
		if err == nil && genErr == nil {
			enhancer = services.NewImageEnhancer(cfg, catalog, generator, s3Store, overrides)
		}
	}

	var marker tasks.NotificationMarker
	if enquiryRepo != nil {
		marker = enquirySvc
	}
	taskProcessor := tasks.NewTaskProcessor(cfg, sender, marker, enhancer)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// --- Service API (all modes) ---
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Logger.Infof("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatalf("Service API ListenAndServe error: %v", err)
		}
		logging.Logger.Info("Service API server stopped.")
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var taskSrv *asynq.Server

	logging.Logger.Infof("Starting application in '%s' mode...", cfg.RunMode)

	if runMode == "api" || runMode == "all" {
		sessions := site.NewStore(catalog, cfg.SessionIdleTTL)
		chatLoop := chat.NewLoop(catalog, chat.Delays{
			Topic:    cfg.ChatTopicDelay,
			Question: cfg.ChatQuestionDelay,
			Handoff:  cfg.ChatHandoffDelay,
			Reply:    cfg.ChatReplyDelay,
		})
		sessions.OnEvict(func(ctx context.Context, visitorID string) {
			if err := chatLoop.Drop(ctx, visitorID); err != nil {
				logging.Logger.Warnf("Failed to drop chat for %s: %v", visitorID, err)
			}
			if err := savedSvc.Forget(ctx, visitorID); err != nil {
				logging.Logger.Warnf("Failed to forget saved set for %s: %v", visitorID, err)
			}
		})
		go chatLoop.Run(ctx)
		go sessions.RunJanitor(ctx, sessionJanitorInterval)

		startImageEnhancement(ctx, cfg, taskClient, enhancer)

		router := api.SetupRouter(ctx, cfg, api.Dependencies{
			Sessions:   sessions,
			Chat:       chatLoop,
			Properties: propertySvc,
			Agents:     agentSvc,
			Content:    contentSvc,
			Saved:      savedSvc,
			Enquiries:  enquirySvc,
			Newsletter: newsletterSvc,
			Verifier:   captcha.NewTurnstileVerifier(cfg),
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logging.Logger.Infof("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Logger.Fatalf("Main API ListenAndServe error: %v", err)
			}
			logging.Logger.Info("Main API server stopped.")
		}()
	}

	isBg := runMode == "bg" || runMode == "all"
	isImg := runMode == "img" || runMode == "all"
	if isBg || isImg {
		if redisClient == nil {
			return errors.New("task workers require REDIS_ADDR")
		}
		var mux *asynq.ServeMux
		taskSrv, mux = tasks.SetupServer(redisClient, taskProcessor, isBg, isImg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logging.Logger.Info("Task server starting...")
			if err := taskSrv.Run(mux); err != nil {
				logging.Logger.Fatalf("Task server error: %v", err)
			}
			logging.Logger.Info("Task server stopped.")
		}()
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Logger.Infof("Received signal: %s. Shutting down gracefully...", sig)
	case <-shutdownChan:
		logging.Logger.Info("Shutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logging.Logger.Errorf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logging.Logger.Errorf("Main API server shutdown error: %v", err)
		}
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}
	// Stops the chat loop, session janitor and rate limiter cleanup.
	cancel()

	wg.Wait()
	logging.Logger.Info("Server gracefully stopped")
	return nil
}

// startImageEnhancement schedules one enhancement run: through the images
// queue when Redis is available, in-process otherwise.
func startImageEnhancement(ctx context.Context, cfg *config.Config, taskClient *asynq.Client, enhancer tasks.GalleryEnhancer) {
	if !cfg.ImageEnhanceEnabled {
		return
	}
	if taskClient != nil {
		if _, err := taskClient.EnqueueContext(ctx, tasks.NewImageEnhanceTask()); err != nil {
			logging.Logger.Errorf("Failed to enqueue image enhancement: %v", err)
		}
		return
	}
	if enhancer == nil {
		return
	}
	go func() {
		if err := enhancer.Run(ctx); err != nil {
			logging.Logger.Errorf("Image enhancement run failed: %v", err)
		}
	}()
}
