package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"Arya-Agent/internal/api"
	"Arya-Agent/internal/auth"
	"Arya-Agent/internal/job"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the job processor",
	Long: `Start the message API together with the background job processor.

Storage and queue drivers, credentials and worker counts come from the
config file and ARYA_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("aryad")

	if err := ensureDataDir(cfg); err != nil {
		return err
	}

	ag, cleanup, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := buildJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	queue, err := buildJobQueue(ctx, cfg)
	if err != nil {
		closeQuietly("job store", store)
		return err
	}
	service := job.NewService(store, queue)
	defer closeQuietly("job service", service)

	alerts, err := buildAlerts(cfg)
	if err != nil {
		return err
	}
	processor := job.NewProcessor(ag, store, queue,
		job.WithWorkerCount(cfg.Runtime.Workers),
		job.WithJobTimeout(cfg.Runtime.JobTimeout.Std()),
		job.WithAlertDispatcher(alerts),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("作业处理器异常退出", slog.Any("error", err))
			stop()
		}
	}()

	if addr := cfg.Server.MetricsAddress; addr != "" {
		go func() {
			if err := metrics.StartServer(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("指标端口退出", slog.String("address", addr), slog.Any("error", err))
			}
		}()
	}

	authService := auth.NewService(cfg.Server.Keys())
	log.Info("aryad 启动",
		slog.String("job_store", cfg.Storage.JobStore.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.String("llm", cfg.LLM.Provider),
		slog.Int("workers", cfg.Runtime.Workers),
		slog.String("auth", string(authService.Mode())),
		slog.Any("alert_channels", alerts.Channels()),
	)

	server := api.NewServer(cfg.Server.Address, service,
		api.WithAuth(authService),
		api.WithWaitTimeout(cfg.Server.WaitTimeout.Std()),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("aryad 已停止")
	return nil
}
