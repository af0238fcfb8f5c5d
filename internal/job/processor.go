package job

import (
	"context"
	"log/slog"
	"time"

	"Arya-Agent/internal/agent"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/observability/alerting"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/internal/response"
	"Arya-Agent/pkg/logger"
)

// MessageHandler 定义了处理器所需的流水线能力。
type MessageHandler interface {
	Handle(ctx context.Context, msg agent.Message) (*response.Response, error)
}

// Processor 从队列消费作业，交给流水线处理并记录回复。
type Processor struct {
	handler     MessageHandler
	store       Store
	consumer    Consumer
	workerCount int
	jobTimeout  time.Duration
	alerter     alerting.Dispatcher
	log         *slog.Logger
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithJobTimeout 为每个作业设置处理时限。
func WithJobTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.jobTimeout = timeout
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(handler MessageHandler, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		handler:     handler,
		store:       store,
		consumer:    consumer,
		workerCount: 4,
		log:         logger.Named("job"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置作业消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.Process)
}

// Process 领取并执行一个作业。作业只会被执行一次，失败不重投。
func (p *Processor) Process(ctx context.Context, jobID string) error {
	if p.store == nil || p.handler == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	job, err := p.store.Claim(ctx, jobID)
	if err != nil {
		if IsSkippable(err) {
			metrics.ObserveJob("skipped")
			p.log.Debug("跳过作业", slog.String("job_id", jobID), slog.String("reason", err.Error()))
			return nil
		}
		p.log.Error("领取作业失败", slog.Any("error", err), slog.String("job_id", jobID))
		return err
	}

	runCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}
	reply, handleErr := p.handler.Handle(runCtx, agent.Message{
		ID:      job.ID,
		Text:    job.Text,
		Action:  job.Action,
		Source:  job.Source,
		History: job.Context,
	})
	if reply == nil {
		reply = &response.Response{Text: xerrors.ReplyOf(handleErr)}
	}
	if handleErr != nil {
		return p.fail(ctx, job, handleErr, reply)
	}

	if err := p.store.MarkSucceeded(ctx, job.ID, reply); err != nil {
		p.log.Error("标记作业成功失败", slog.Any("error", err), slog.String("job_id", job.ID))
		return err
	}
	metrics.ObserveJob("succeeded")
	logger.Audit().Info("作业处理完成",
		slog.String("job_id", job.ID),
		slog.String("action", string(job.Action)),
		slog.String("source", job.Source),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, job *Job, cause error, reply *response.Response) error {
	lastError := cause.Error()
	if _, coded := xerrors.From(cause); !coded {
		cause = xerrors.Wrap(CodeJobProcessing, cause, "")
	}
	code := xerrors.CodeOf(cause)
	if err := p.store.MarkFailed(ctx, job.ID, code, lastError, reply); err != nil {
		p.log.Error("标记作业失败状态出错", slog.Any("error", err), slog.String("job_id", job.ID))
		return err
	}
	metrics.ObserveJob("failed")
	logger.Audit().Warn("作业处理失败",
		slog.String("job_id", job.ID),
		slog.String("action", string(job.Action)),
		slog.String("error_code", string(code)),
		slog.String("error", lastError),
	)
	if xerrors.ShouldAlert(cause) {
		p.emitAlert(ctx, job, code, cause)
	}
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, job *Job, code xerrors.Code, cause error) {
	if p.alerter == nil {
		return
	}
	event := alerting.Event{
		Code:       code,
		Message:    cause.Error(),
		Severity:   xerrors.SeverityOf(cause),
		JobID:      job.ID,
		Action:     string(job.Action),
		Attempts:   job.Attempts,
		Metadata:   map[string]string{"source": job.Source},
		OccurredAt: time.Now(),
	}
	if coded, ok := xerrors.From(cause); ok {
		for key, value := range coded.Metadata() {
			event.Metadata[key] = value
		}
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.log.Error("告警通知失败", slog.Any("error", err), slog.String("job_id", job.ID))
	}
}
