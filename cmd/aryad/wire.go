package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"Arya-Agent/internal/addressbook"
	"Arya-Agent/internal/agent"
	"Arya-Agent/internal/config"
	"Arya-Agent/internal/exchange"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/job"
	"Arya-Agent/internal/llm"
	"Arya-Agent/internal/llm/openai"
	"Arya-Agent/internal/llm/pythonbridge"
	"Arya-Agent/internal/media"
	"Arya-Agent/internal/nameservice"
	"Arya-Agent/internal/observability/alerting"
	"Arya-Agent/internal/starknet"
	"Arya-Agent/pkg/logger"
)

// newLLMClient 根据配置创建大模型客户端。
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.OpenAI.APIKey,
			BaseURL:   cfg.LLM.OpenAI.BaseURL,
			Model:     cfg.LLM.OpenAI.Model,
			Timeout:   cfg.LLM.Timeout.Std(),
			MaxTokens: cfg.LLM.OpenAI.MaxTokens,
		})
	case "python_bridge":
		py := cfg.LLM.Python
		return pythonbridge.NewClient(pythonbridge.Config{
			Python:     py.PythonExecutable,
			Script:     py.ScriptPath,
			WorkingDir: py.WorkingDir,
		})
	default:
		return nil, fmt.Errorf("未知的大模型提供方: %s", cfg.LLM.Provider)
	}
}

func loadAddressBook(cfg *config.Config) (*addressbook.Book, error) {
	if cfg.Exchange.AddressBook == "" {
		return addressbook.Default(), nil
	}
	return addressbook.Load(cfg.Exchange.AddressBook)
}

// buildAgent 组装流水线及其依赖，返回的 cleanup 负责关闭链上连接。
func buildAgent(ctx context.Context, cfg *config.Config) (*agent.Agent, func(), error) {
	cleanup := func() {}

	llmClient, err := newLLMClient(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	book, err := loadAddressBook(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	avnu := exchange.NewClient(exchange.Config{
		BaseURL:    cfg.Exchange.BaseURL,
		ImpulseURL: cfg.Exchange.ImpulseURL,
		Timeout:    cfg.Exchange.Timeout.Std(),
	})

	directory, err := buildMediaDirectory(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	resolver := nameservice.NewClient(nameservice.Config{
		BaseURL: cfg.NameService.BaseURL,
		Timeout: cfg.NameService.Timeout.Std(),
	})

	opts := []agent.Option{
		agent.WithAddressBook(book),
		agent.WithPrices(exchange.NewPriceService(avnu)),
		agent.WithMedia(directory, resolver),
		agent.WithSwapDefaults(*cfg.Exchange.Slippage, *cfg.Exchange.AutoApprove),
		agent.WithLLMTimeout(cfg.LLM.Timeout.Std()),
	}

	if cfg.Starknet.Enabled() {
		chain, err := starknet.Dial(ctx, starknet.Config{
			RPCURL:         cfg.Starknet.RPCURL,
			PollInterval:   cfg.Starknet.PollInterval.Std(),
			ReceiptTimeout: cfg.Starknet.ReceiptTimeout.Std(),
		})
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = chain.Close
		account, err := starknet.NewRemoteAccount(starknet.SignerConfig{
			URL:     cfg.Starknet.SignerURL,
			Address: cfg.Starknet.AccountAddress,
			APIKey:  cfg.Starknet.SignerAPIKey,
		}, chain)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		quotes := exchange.NewQuoteService(avnu, account.Address())
		executor := exchange.NewExecutor(avnu, exchange.WithRequoter(quotes))
		opts = append(opts, agent.WithSwap(quotes, executor, account))
	} else {
		logger.L().Warn("未配置 Starknet 账户，兑换工作流不可用")
	}

	extractor := intent.NewExtractor(llmClient, intent.WithExtractorLogger(logger.Named("intent")))
	return agent.New(extractor, opts...), cleanup, nil
}

func buildMediaDirectory(cfg *config.Config) (*media.Directory, error) {
	var clients []media.Client
	if cfg.Media.Twitch.Enabled() {
		twitch, err := media.NewTwitch(media.TwitchConfig{
			ClientID:     cfg.Media.Twitch.ClientID,
			ClientSecret: cfg.Media.Twitch.ClientSecret,
			AccessToken:  cfg.Media.Twitch.AccessToken,
			Timeout:      cfg.Media.Timeout.Std(),
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, twitch)
	}
	if cfg.Media.YouTube.APIKey != "" {
		youtube, err := media.NewYouTube(media.YouTubeConfig{
			APIKey:  cfg.Media.YouTube.APIKey,
			Timeout: cfg.Media.Timeout.Std(),
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, youtube)
	}
	return media.NewDirectory(clients...), nil
}

// buildJobStore 根据驱动创建作业存储。
func buildJobStore(ctx context.Context, cfg *config.Config) (job.Store, error) {
	switch cfg.Storage.JobStore.Driver {
	case "memory":
		return job.NewMemoryStore(), nil
	case "mysql":
		store := cfg.Storage.JobStore
		return job.NewMySQLStore(ctx, job.MySQLConfig{
			DSN:             store.DSN,
			MaxOpenConns:    store.MaxOpenConns,
			MaxIdleConns:    store.MaxIdleConns,
			ConnMaxLifetime: store.ConnMaxLifetime.Std(),
		})
	default:
		return nil, fmt.Errorf("未知的作业存储驱动: %s", cfg.Storage.JobStore.Driver)
	}
}

// buildJobQueue 根据驱动创建作业队列。
func buildJobQueue(ctx context.Context, cfg *config.Config) (job.Queue, error) {
	switch cfg.Queue.Driver {
	case "memory":
		return job.NewMemoryQueue(cfg.Queue.Size), nil
	case "redis":
		redis := cfg.Queue.Redis
		return job.NewRedisQueue(ctx, job.RedisQueueConfig{
			Address:   redis.Address,
			Password:  redis.Password,
			DB:        redis.DB,
			Queue:     redis.Queue,
			BlockWait: redis.BlockWait.Std(),
		})
	case "rabbitmq":
		rabbit := cfg.Queue.RabbitMQ
		return job.NewRabbitMQQueue(job.RabbitMQConfig{
			URL:      rabbit.URL,
			Queue:    rabbit.Queue,
			Prefetch: rabbit.Prefetch,
			Durable:  rabbit.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
}

// buildAlerts 始终包含日志渠道，配置了 webhook 时追加 webhook 渠道。
func buildAlerts(cfg *config.Config) (*alerting.FanoutDispatcher, error) {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alerting")}}
	if cfg.Alerting.WebhookURL != "" {
		webhook, err := alerting.NewWebhookNotifier(alerting.WebhookConfig{
			URL:   cfg.Alerting.WebhookURL,
			Token: cfg.Alerting.WebhookToken,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}
	return alerting.NewFanout(notifiers...), nil
}

// ensureDataDir 创建运行时数据目录，审计日志等文件默认落在这里。
func ensureDataDir(cfg *config.Config) error {
	if cfg.Runtime.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}
	return nil
}

func closeQuietly(name string, closer interface{ Close() error }) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.L().Warn("关闭资源失败", slog.String("resource", name), slog.Any("error", err))
	}
}
