package job

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"Arya-Agent/internal/agent"
	xerrors "Arya-Agent/internal/errors"
	"Arya-Agent/internal/intent"
	"Arya-Agent/internal/observability/metrics"
	"Arya-Agent/internal/response"
	"Arya-Agent/pkg/logger"
)

// Service 负责作业的创建与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造作业服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 为一条消息创建作业并推送到队列。
//
// 带 ID 的重复提交返回已有作业，不会再次执行。
func (s *Service) Submit(ctx context.Context, msg agent.Message) (*Job, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, xerrors.New(CodeJobValidation, "消息内容不能为空")
	}
	action := msg.Action
	if action != "" {
		parsed, err := intent.ParseAction(string(action))
		if err != nil {
			return nil, xerrors.Wrap(CodeJobValidation, err, "不支持的 action", xerrors.WithMetadata("action", string(action)))
		}
		action = parsed
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "作业服务未初始化")
	}

	jobID := strings.TrimSpace(msg.ID)
	if jobID != "" {
		existing, err := s.store.Get(ctx, jobID)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, ErrJobNotFound) {
			return nil, err
		}
	} else {
		jobID = uuid.NewString()
	}

	job := &Job{
		ID:          jobID,
		Text:        text,
		Action:      action,
		Source:      strings.TrimSpace(msg.Source),
		Context:     msg.History,
		Status:      StatusPending,
		MaxAttempts: MaxAttempts,
	}
	if err := s.store.Create(ctx, job); err != nil {
		if stdErrors.Is(err, ErrJobConflict) {
			if existing, getErr := s.store.Get(ctx, jobID); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, jobID); err != nil {
		logger.L().Error("作业入队失败", slog.Any("error", err), slog.String("job_id", jobID))
		wrapped := xerrors.Wrap(CodeJobPublish, err, "发布作业到队列失败", xerrors.WithReply(publishFailedReply))
		reply := &response.Response{Text: xerrors.ReplyOf(wrapped)}
		_ = s.store.MarkFailed(ctx, jobID, CodeJobPublish, wrapped.Error(), reply)
		return nil, wrapped
	}
	metrics.ObserveJob("submitted")
	logger.Audit().Info("作业入队成功",
		slog.String("job_id", jobID),
		slog.String("action", string(job.Action)),
		slog.String("source", job.Source),
	)
	return job, nil
}

// publishFailedReply 是作业未能入队时记录的回复。
const publishFailedReply = "Your message could not be queued, please try again."

// Get 返回指定作业。
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "作业存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的作业列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Job, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "作业存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的作业统计。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (Stats, error) {
	if s.store == nil {
		return Stats{}, xerrors.New(xerrors.CodeInitializationFailure, "作业存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// WaitUntilCompleted 轮询作业直到结束或 ctx 到期。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close 释放存储与队列。
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	return stdErrors.Join(errs...)
}
