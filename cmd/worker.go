package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "paperchat/handler/http"
	"paperchat/src/core/rag"
	"paperchat/src/infrastructure/job"
	"paperchat/src/log"
	"paperchat/src/ollama"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background ingestion worker",
	Long: `The worker command consumes ingestion jobs queued with
"upload --enqueue" and runs them through the same pipeline as a
synchronous upload, one at a time. While running it serves a small
HTTP API: GET /healthz for system health and GET /jobs/:id for job
status.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := watermillLogger()

	// Initialize the job ledger
	db, closeDB, err := openPostgres()
	if err != nil {
		return err
	}
	defer closeDB()

	repo, err := job.NewPostgresRepository(db)
	if err != nil {
		return err
	}

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, logger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	// The worker runs the same pipeline as a synchronous upload.
	pipeline, err := buildPipeline()
	if err != nil {
		return err
	}
	jobService := job.NewService(amqpPublisher, repo, pipeline, viper.GetString("worker.queue"))

	router.AddNoPublisherHandler(
		"job_processor",
		jobService.Queue(),
		amqpSubscriber,
		jobService.ProcessMessage,
	)

	// Initialize the operational HTTP API
	store, err := buildStore()
	if err != nil {
		return err
	}
	arc, err := buildArchive()
	if err != nil {
		return err
	}
	client := buildOllamaClient()
	system := rag.NewSystemService(store, ollama.NewRuntime(client), buildEmbedder(client), arc)

	r := gin.Default()
	httpHdlr.NewHandler(system, repo).RegisterRoutes(r)
	srv := &http.Server{
		Addr:    ":" + viper.GetString("worker.port"),
		Handler: r,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		if err := router.Run(ctx); err != nil {
			log.Error(err, "job router stopped")
			os.Exit(1)
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "failed to start worker API server")
			os.Exit(1)
		}
	}()

	fmt.Printf("Worker consuming queue %q, API listening on :%s\n", jobService.Queue(), viper.GetString("worker.port"))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		timeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "worker API server forced to shut down")
	}

	cancel()
	<-routerDone
	fmt.Println("Worker stopped.")
	return nil
}
